package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// DefaultContextKey is the router Locals key and cookie name for the session
const DefaultContextKey = "patientipr_session"

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSession sets the session in the given context
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the session in the context
func SessionFromContext(ctx context.Context) (*Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*Session)
	return raw, ok && raw != nil
}

// GetRouterSession extracts the session stored by the route guard
func GetRouterSession(c router.Context, key string) (*Session, error) {
	if key == "" {
		key = DefaultContextKey
	}

	raw := c.Locals(key)
	if raw == nil {
		return nil, ErrUnableToFindSession
	}

	session, ok := raw.(*Session)
	if !ok || session == nil {
		return nil, ErrUnableToDecodeSession
	}

	return session, nil
}

// TokenFromRequest reads the bearer header first, then the session cookie
func TokenFromRequest(c router.Context, cookieName string) string {
	if h := c.Header(fiber.HeaderAuthorization); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	if cookieName == "" {
		cookieName = DefaultContextKey
	}
	return c.Cookies(cookieName)
}
