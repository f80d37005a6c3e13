package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Backend is the local AuthBackend. It serves the HTTP controller and can be
// used directly by in-process clients.
type Backend struct {
	accounts AccountStore
	resets   ResetStore
	verifier *AccountVerifier
	notifier ResetNotifier
	logger   Logger
	activity ActivitySink
	timeout  time.Duration
	resetTTL time.Duration
}

// BackendOption configures a Backend
type BackendOption func(*Backend)

// WithBackendLogger sets the logger
func WithBackendLogger(logger Logger) BackendOption {
	return func(b *Backend) {
		b.logger = normalizeLogger(logger)
	}
}

// WithBackendActivitySink sets the sink used for signup, login and reset events
func WithBackendActivitySink(sink ActivitySink) BackendOption {
	return func(b *Backend) {
		b.activity = normalizeActivitySink(sink)
	}
}

// WithResetNotifier sets how reset links are delivered
func WithResetNotifier(n ResetNotifier) BackendOption {
	return func(b *Backend) {
		if n != nil {
			b.notifier = n
		}
	}
}

// WithBackendTimeout bounds every backend operation
func WithBackendTimeout(d time.Duration) BackendOption {
	return func(b *Backend) {
		b.timeout = d
	}
}

// WithResetTokenTTL overrides DefaultResetTokenTTL
func WithResetTokenTTL(d time.Duration) BackendOption {
	return func(b *Backend) {
		if d > 0 {
			b.resetTTL = d
		}
	}
}

// NewBackend creates a backend over the given stores
func NewBackend(accounts AccountStore, resets ResetStore, tokens TokenService, opts ...BackendOption) *Backend {
	b := &Backend{
		accounts: accounts,
		resets:   resets,
		logger:   defLogger{},
		activity: noopActivitySink{},
		timeout:  DefaultRequestTimeout,
		resetTTL: DefaultResetTokenTTL,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.notifier == nil {
		b.notifier = LogResetNotifier{Logger: b.logger}
	}

	b.verifier = NewAccountVerifier(accounts, tokens).
		WithLogger(b.logger).
		WithActivitySink(b.activity).
		WithTimeout(b.timeout)

	return b
}

// Verify implements CredentialVerifier
func (b *Backend) Verify(ctx context.Context, identifier, secret string) (*Session, error) {
	return b.verifier.Verify(ctx, identifier, secret)
}

// Register creates a user account. The role is always RoleUser.
func (b *Backend) Register(ctx context.Context, req SignupRequest) (*Profile, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during signup")
	default:
	}

	if err := ValidateSignupRequest(req); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	hash, err := b.hashSecret(ctx, req.Secret)
	if err != nil {
		return nil, err
	}

	username := NormalizeIdentifier(req.Identifier)
	if username == "" {
		username = UsernameFromEmail(req.Email)
	}

	account, err := b.accounts.Create(ctx, &Account{
		Username:     username,
		Email:        req.Email,
		Name:         req.Name,
		Role:         RoleUser,
		PasswordHash: hash,
	})
	if err != nil {
		if IsDuplicateIdentifier(err) {
			b.logger.Info("signup rejected, identifier taken", "username", username)
			return nil, err
		}
		return nil, b.operationError(ctx, err, "failed to register account")
	}

	b.logger.Info("account registered", "username", account.Username)
	recordActivity(ctx, b.activity, b.logger, ActivityEvent{
		Type:     ActivitySignup,
		Username: account.Username,
		Role:     account.Role,
	})

	profile := account.Profile()
	return &profile, nil
}

// RequestPasswordReset issues a reset token when the email belongs to an
// account. Unknown emails succeed silently.
func (b *Backend) RequestPasswordReset(ctx context.Context, email string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password reset request")
	default:
	}

	if err := ValidateEmail(email); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	account, err := b.accounts.GetByEmail(ctx, email)
	if err != nil {
		if IsAccountNotFound(err) {
			b.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return b.operationError(ctx, err, "failed to look up account")
	}

	reset, err := b.resets.Create(ctx, &PasswordReset{
		AccountID: account.ID,
		Email:     account.Email,
		Status:    ResetRequestedStatus,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return b.operationError(ctx, err, "failed to create password reset")
	}

	if err := b.notifier.NotifyPasswordReset(ctx, account, reset); err != nil {
		return b.operationError(ctx, err, "failed to deliver password reset")
	}

	recordActivity(ctx, b.activity, b.logger, ActivityEvent{
		Type:     ActivityPasswordResetRequested,
		Username: account.Username,
		Role:     account.Role,
	})

	return nil
}

// ResetPassword sets a new secret using a reset token. Tokens are single use
// and expire after the reset TTL.
func (b *Backend) ResetPassword(ctx context.Context, token, newSecret string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password reset")
	default:
	}

	if err := ValidateNewSecret(newSecret); err != nil {
		return err
	}

	id, err := uuid.Parse(token)
	if err != nil {
		return ErrTokenInvalid
	}

	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	reset, err := b.resets.GetByID(ctx, id)
	if err != nil {
		if IsTokenInvalid(err) {
			return err
		}
		return b.operationError(ctx, err, "could not retrieve password reset request")
	}

	if reset.Status != ResetRequestedStatus {
		return ErrTokenInvalid.Clone().
			WithMetadata(map[string]any{"status": reset.Status})
	}

	if IsOutsideThresholdPeriod(reset.CreatedAt, b.resetTTL) {
		if err := b.resets.UpdateStatus(ctx, reset.ID, ResetExpiredStatus); err != nil {
			b.logger.Warn("failed to expire password reset", "error", err)
		}
		return ErrTokenInvalid.Clone().
			WithMetadata(map[string]any{"status": ResetExpiredStatus})
	}

	hash, err := b.hashSecret(ctx, newSecret)
	if err != nil {
		return err
	}

	if err := b.accounts.UpdatePassword(ctx, reset.AccountID, hash); err != nil {
		return b.operationError(ctx, err, "failed to update account password")
	}

	if err := b.resets.UpdateStatus(ctx, reset.ID, ResetChangedStatus); err != nil {
		return b.operationError(ctx, err, "failed to update password reset status")
	}

	b.logger.Info("password reset completed", "email", reset.Email)
	recordActivity(ctx, b.activity, b.logger, ActivityEvent{
		Type:     ActivityPasswordResetSuccess,
		Metadata: map[string]any{"email": reset.Email},
	})

	return nil
}

// operationError maps deadline expiry to a transport error
// hashSecret passes field errors through so callers can show them
func (b *Backend) hashSecret(ctx context.Context, secret string) (string, error) {
	hash, err := HashPassword(secret)
	if err == nil {
		return hash, nil
	}
	if _, ok := goerrors.GetValidationErrors(err); ok {
		return "", err
	}
	return "", b.operationError(ctx, err, "failed to hash password")
}

func (b *Backend) operationError(ctx context.Context, err error, msg string) error {
	if ctx.Err() != nil {
		return NewTransportError(ctx.Err(), msg)
	}
	b.logger.Error(msg, "error", err)
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
