package auth

import (
	"slices"
	"strings"
)

// Default redirect targets
const (
	LoginRoute        = "/login"
	UnauthorizedRoute = "/unauthorized"
	FallbackRoute     = "/"
)

// Outcome is the result of an access decision
type Outcome string

const (
	Unauthenticated        Outcome = "unauthenticated"
	AuthenticatedWrongRole Outcome = "wrong_role"
	AuthenticatedAllowed   Outcome = "allowed"
	RouteNotFound          Outcome = "not_found"
)

// Decision tells the view layer whether to render or where to go
type Decision struct {
	Outcome  Outcome
	Redirect string
	Route    *Route
	Params   map[string]string
}

// Allowed reports whether the route can be rendered
func (d Decision) Allowed() bool {
	return d.Outcome == AuthenticatedAllowed
}

// Route is one entry of the route table. Public routes skip every check.
// A protected route with no roles admits any authenticated session.
type Route struct {
	Pattern string
	Public  bool
	Roles   []Role
}

// RouteTable is an ordered list of routes, first match wins
type RouteTable struct {
	routes []Route
}

// NewRouteTable creates a table from routes, in order
func NewRouteTable(routes ...Route) *RouteTable {
	return &RouteTable{routes: append([]Route(nil), routes...)}
}

// DefaultRouteTable is the portal's route map
func DefaultRouteTable() *RouteTable {
	return NewRouteTable(
		Route{Pattern: "/", Public: true},
		Route{Pattern: "/login", Public: true},
		Route{Pattern: "/signup", Public: true},
		Route{Pattern: "/forgot-password", Public: true},
		Route{Pattern: "/reset-password", Public: true},
		Route{Pattern: "/reset-password/:token", Public: true},
		Route{Pattern: "/unauthorized", Public: true},
		Route{Pattern: "/user/dashboard", Roles: []Role{RoleUser}},
		Route{Pattern: "/admin/dashboard", Roles: []Role{RoleAdmin}},
		Route{Pattern: "/agent/dashboard", Roles: []Role{RoleAgent}},
		Route{Pattern: "/user/services"},
		Route{Pattern: "/user/services/:type"},
	)
}

// Add appends a route
func (t *RouteTable) Add(route Route) *RouteTable {
	t.routes = append(t.routes, route)
	return t
}

// Routes returns a copy of the table
func (t *RouteTable) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

// Match finds the first route matching path
func (t *RouteTable) Match(path string) (*Route, map[string]string, bool) {
	segments := splitPath(path)
	for i := range t.routes {
		if params, ok := matchPattern(splitPath(t.routes[i].Pattern), segments); ok {
			route := t.routes[i]
			return &route, params, true
		}
	}
	return nil, nil, false
}

func splitPath(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func matchPattern(pattern, segments []string) (map[string]string, bool) {
	params := map[string]string{}
	for i, p := range pattern {
		if p == "*" && i == len(pattern)-1 {
			params["*"] = strings.Join(segments[min(i, len(segments)):], "/")
			return params, true
		}
		if i >= len(segments) {
			return nil, false
		}
		switch {
		case strings.HasPrefix(p, ":"):
			params[p[1:]] = segments[i]
		case p != segments[i]:
			return nil, false
		}
	}
	if len(pattern) != len(segments) {
		return nil, false
	}
	return params, true
}

// AccessGuard decides whether a session may see a route. It holds no state
// besides its configuration.
type AccessGuard struct {
	routes       *RouteTable
	login        string
	unauthorized string
	fallback     string
}

// GuardOption configures an AccessGuard
type GuardOption func(*AccessGuard)

// WithRouteTable replaces DefaultRouteTable
func WithRouteTable(t *RouteTable) GuardOption {
	return func(g *AccessGuard) {
		if t != nil {
			g.routes = t
		}
	}
}

// WithGuardRedirects overrides the login, unauthorized and fallback targets.
// Empty values keep the defaults.
func WithGuardRedirects(login, unauthorized, fallback string) GuardOption {
	return func(g *AccessGuard) {
		if login != "" {
			g.login = login
		}
		if unauthorized != "" {
			g.unauthorized = unauthorized
		}
		if fallback != "" {
			g.fallback = fallback
		}
	}
}

// WithGuardConfig takes the fallback target from the rejected route
// default in cfg
func WithGuardConfig(cfg Config) GuardOption {
	return func(g *AccessGuard) {
		if cfg == nil {
			return
		}
		if fallback := cfg.GetRejectedRouteDefault(); fallback != "" {
			g.fallback = fallback
		}
	}
}

// NewAccessGuard creates a guard
func NewAccessGuard(opts ...GuardOption) *AccessGuard {
	g := &AccessGuard{
		routes:       DefaultRouteTable(),
		login:        LoginRoute,
		unauthorized: UnauthorizedRoute,
		fallback:     FallbackRoute,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate checks a session against the roles a route requires. An empty
// requiredRoles admits any authenticated session. Roles outside the closed
// set never match.
func (g *AccessGuard) Evaluate(session *Session, requiredRoles []Role) Decision {
	if !session.IsAuthenticated() {
		return Decision{Outcome: Unauthenticated, Redirect: g.login}
	}

	if len(requiredRoles) > 0 {
		if !session.Role.IsValid() || !slices.Contains(requiredRoles, session.Role) {
			return Decision{Outcome: AuthenticatedWrongRole, Redirect: g.unauthorized}
		}
	}

	return Decision{Outcome: AuthenticatedAllowed}
}

// Check resolves path through the route table and evaluates it
func (g *AccessGuard) Check(session *Session, path string) Decision {
	route, params, ok := g.routes.Match(path)
	if !ok {
		return Decision{Outcome: RouteNotFound, Redirect: g.fallback}
	}

	if route.Public {
		return Decision{Outcome: AuthenticatedAllowed, Route: route, Params: params}
	}

	d := g.Evaluate(session, route.Roles)
	d.Route = route
	d.Params = params
	return d
}

// HomeRoute is where a session lands after login. Unknown roles go to the
// fallback route.
func (g *AccessGuard) HomeRoute(session *Session) string {
	if session == nil {
		return g.login
	}
	if route, ok := session.Role.HomeRoute(); ok {
		return route
	}
	return g.fallback
}
