package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger is the logging surface accepted by every component. Args are
// key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
	GetSessionKey() string
	GetRequestTimeout() time.Duration
	GetResetTokenTTL() time.Duration
}

// CredentialVerifier resolves an identifier and secret into a session.
// Failures are reported as *CredentialError.
type CredentialVerifier interface {
	Verify(ctx context.Context, identifier, secret string) (*Session, error)
}

// AccountRegistrar creates new accounts. New accounts always get RoleUser.
type AccountRegistrar interface {
	Register(ctx context.Context, req SignupRequest) (*Profile, error)
}

// PasswordResetter handles both halves of the password reset exchange
type PasswordResetter interface {
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newSecret string) error
}

// AuthBackend is what the auth flows need from a backend, local or remote
type AuthBackend interface {
	CredentialVerifier
	AccountRegistrar
	PasswordResetter
}

// SignupRequest is the payload used to register a new account
type SignupRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// Navigator moves the view layer to a route
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(path string) {
	if f != nil {
		f(path)
	}
}

type noopNavigator struct{}

func (noopNavigator) Navigate(string) {}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + formatLine(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + formatLine(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + formatLine(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + formatLine(msg, args...))
}

func formatLine(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
