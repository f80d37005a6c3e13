package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// RemoteBackend implements AuthBackend against the /auth HTTP endpoints
type RemoteBackend struct {
	baseURL string
	timeout time.Duration
	logger  Logger
}

// RemoteOption configures a RemoteBackend
type RemoteOption func(*RemoteBackend)

// WithRemoteTimeout overrides DefaultRequestTimeout
func WithRemoteTimeout(d time.Duration) RemoteOption {
	return func(r *RemoteBackend) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRemoteLogger sets the logger
func WithRemoteLogger(l Logger) RemoteOption {
	return func(r *RemoteBackend) {
		r.logger = normalizeLogger(l)
	}
}

// NewRemoteBackend creates a client for the server at baseURL
func NewRemoteBackend(baseURL string, opts ...RemoteOption) *RemoteBackend {
	r := &RemoteBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultRequestTimeout,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Verify implements CredentialVerifier. Client timeouts come back as
// CredentialError{timeout}.
func (r *RemoteBackend) Verify(ctx context.Context, identifier, secret string) (*Session, error) {
	res, err := r.do(ctx, fiber.Post(r.baseURL+"/auth/login").JSON(LoginPayload{
		Identifier: identifier,
		Secret:     secret,
	}))
	if err != nil {
		if isTimeout(err) {
			return nil, NewCredentialError(ReasonTimeout, err)
		}
		return nil, r.transport(err, "login")
	}

	if err := res.Err(); err != nil {
		return nil, err
	}

	return res.Session()
}

// Register implements AccountRegistrar
func (r *RemoteBackend) Register(ctx context.Context, req SignupRequest) (*Profile, error) {
	res, err := r.do(ctx, fiber.Post(r.baseURL+"/auth/signup").JSON(req))
	if err != nil {
		return nil, r.transport(err, "signup")
	}

	if err := res.Err(); err != nil {
		return nil, err
	}

	if res.Profile == nil {
		return &Profile{Name: req.Name, Username: req.Identifier, Email: req.Email}, nil
	}
	return res.Profile, nil
}

// RequestPasswordReset implements PasswordResetter
func (r *RemoteBackend) RequestPasswordReset(ctx context.Context, email string) error {
	res, err := r.do(ctx, fiber.Post(r.baseURL+"/auth/password-reset-request").JSON(ResetRequestPayload{
		Email: email,
	}))
	if err != nil {
		return r.transport(err, "password reset request")
	}
	return res.Err()
}

// ResetPassword implements PasswordResetter
func (r *RemoteBackend) ResetPassword(ctx context.Context, token, newSecret string) error {
	res, err := r.do(ctx, fiber.Post(r.baseURL+"/auth/password-reset").JSON(ResetPayload{
		Token:     token,
		NewSecret: newSecret,
	}))
	if err != nil {
		return r.transport(err, "password reset")
	}
	return res.Err()
}

// Logout tells the server the token is no longer used
func (r *RemoteBackend) Logout(ctx context.Context, token string) error {
	agent := fiber.Post(r.baseURL + "/auth/logout")
	if token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	res, err := r.do(ctx, agent)
	if err != nil {
		return r.transport(err, "logout")
	}
	return res.Err()
}

// Session asks the server to decode token
func (r *RemoteBackend) Session(ctx context.Context, token string) (*Session, error) {
	agent := fiber.Get(r.baseURL+"/auth/session").
		Set(fiber.HeaderAuthorization, "Bearer "+token)

	res, err := r.do(ctx, agent)
	if err != nil {
		return nil, r.transport(err, "session")
	}

	if err := res.Err(); err != nil {
		return nil, err
	}

	res.Token = token
	return res.Session()
}

func (r *RemoteBackend) do(ctx context.Context, agent *fiber.Agent) (*AuthResponse, error) {
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(agent)
		return nil, err
	}

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	out := &AuthResponse{}
	code, _, errs := agent.Timeout(timeout).Struct(out)
	if len(errs) > 0 {
		err := errors.Join(errs...)
		r.logger.Debug("auth request failed", "status", code, "error", err)
		return nil, err
	}

	if !out.Success && out.Code == "" {
		out.Code = CodeTransport
	}

	return out, nil
}

func (r *RemoteBackend) transport(err error, operation string) error {
	if isTimeout(err) {
		return NewTransportError(context.DeadlineExceeded, operation+" timed out")
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return NewTransportError(err, operation)
}

func isTimeout(err error) bool {
	return errors.Is(err, fasthttp.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
