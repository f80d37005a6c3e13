package auth

import (
	"net/http"
	"time"

	"github.com/goliatone/go-router"
)

// RouteGuard exposes an AccessGuard as router middleware. The session is
// read from the bearer header or the session cookie.
type RouteGuard struct {
	guard    *AccessGuard
	tokens   TokenService
	cfg      Config
	logger   Logger
	activity ActivitySink
	secure   bool
}

// RouteGuardOption configures a RouteGuard
type RouteGuardOption func(*RouteGuard)

// WithRouteGuardLogger sets the logger
func WithRouteGuardLogger(l Logger) RouteGuardOption {
	return func(g *RouteGuard) {
		g.logger = normalizeLogger(l)
	}
}

// WithRouteGuardActivitySink records denied requests
func WithRouteGuardActivitySink(sink ActivitySink) RouteGuardOption {
	return func(g *RouteGuard) {
		g.activity = normalizeActivitySink(sink)
	}
}

// WithRouteGuardSecureCookies marks the redirect cookie Secure
func WithRouteGuardSecureCookies(secure bool) RouteGuardOption {
	return func(g *RouteGuard) {
		g.secure = secure
	}
}

// NewRouteGuard creates the middleware factory
func NewRouteGuard(guard *AccessGuard, tokens TokenService, cfg Config, opts ...RouteGuardOption) *RouteGuard {
	g := &RouteGuard{
		guard:    guard,
		tokens:   tokens,
		cfg:      cfg,
		logger:   defLogger{},
		activity: noopActivitySink{},
		secure:   true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware checks every request path against the route table
func (g *RouteGuard) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			session := g.sessionFor(c)
			return g.apply(c, next, session, g.guard.Check(session, c.Path()))
		}
	}
}

// Require guards a single route with explicit roles. No roles admits any
// authenticated session.
func (g *RouteGuard) Require(roles ...Role) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			session := g.sessionFor(c)
			return g.apply(c, next, session, g.guard.Evaluate(session, roles))
		}
	}
}

func (g *RouteGuard) apply(c router.Context, next router.HandlerFunc, session *Session, d Decision) error {
	switch d.Outcome {
	case AuthenticatedAllowed:
		if session != nil {
			c.Locals(g.cfg.GetContextKey(), session)
			c.SetContext(WithSession(c.Context(), session))
		}
		return next(c)
	case Unauthenticated:
		g.logger.Info("unauthenticated request, redirecting to login", "path", c.OriginalURL())
		g.SetRedirect(c)
	case AuthenticatedWrongRole:
		g.logger.Info("access denied", "path", c.OriginalURL(), "user", session.Profile.Username, "role", session.Role)
		recordActivity(c.Context(), g.activity, g.logger, ActivityEvent{
			Type:     ActivityAccessDenied,
			Username: session.Profile.Username,
			Role:     session.Role,
			Reason:   string(d.Outcome),
			Metadata: map[string]any{"path": c.Path()},
		})
	default:
		g.logger.Debug("unknown route", "path", c.Path())
	}

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect(d.Redirect, statusCode)
}

func (g *RouteGuard) sessionFor(c router.Context) *Session {
	token := TokenFromRequest(c, g.cfg.GetContextKey())
	if token == "" {
		return nil
	}

	session, err := g.tokens.SessionFromToken(token)
	if err != nil {
		g.logger.Debug("ignoring invalid session token", "path", c.Path(), "error", err)
		return nil
	}
	return session
}

// SetRedirect remembers the rejected route for a few minutes
func (g *RouteGuard) SetRedirect(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     g.cfg.GetRejectedRouteKey(),
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   g.secure,
		SameSite: "Lax",
	})
}
