// Package auth provides the patient portal's authentication layer: session
// state on the client, role based route access, the login, signup and
// password reset flows, and the backend those flows talk to.
//
// Sessions:
//   - SessionContext owns the current Session and persists it through a
//     SessionStore. KeyValueSessionStore keeps one JSON record under a fixed
//     key in any KeyValue (memory, bun/sqlite or redis). Corrupt records are
//     purged and treated as logged out.
//
// Access:
//   - AccessGuard resolves a path through the RouteTable and decides between
//     allowed, login redirect and unauthorized redirect. RouteGuard exposes
//     the same decision as fiber middleware.
//
// Backends:
//   - Backend verifies credentials against an AccountStore, registers
//     accounts and runs password resets. AuthController serves it over the
//     /auth JSON contract and RemoteBackend is the matching client.
//
// Activity sinks:
//   - ActivitySink receives login, signup, reset and access events. Sinks
//     run best-effort (errors are logged). The metrics package counts them.
package auth
