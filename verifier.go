package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// MaxLoginAttempts is the maximun number of attempts a user gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = 24 * time.Hour

// DefaultRequestTimeout bounds every backend call
const DefaultRequestTimeout = 10 * time.Second

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// unknown identifiers still pay for a bcrypt compare
func burnCompare(secret string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = RandomPasswordHash()
	})
	_ = ComparePasswordAndHash(secret, dummyHash)
}

// AccountVerifier checks credentials against an AccountStore and issues a
// session token on success
type AccountVerifier struct {
	store    AccountStore
	tokens   TokenService
	logger   Logger
	activity ActivitySink
	timeout  time.Duration
}

// NewAccountVerifier creates a verifier
func NewAccountVerifier(store AccountStore, tokens TokenService) *AccountVerifier {
	return &AccountVerifier{
		store:    store,
		tokens:   tokens,
		logger:   defLogger{},
		activity: noopActivitySink{},
		timeout:  DefaultRequestTimeout,
	}
}

func (v *AccountVerifier) WithLogger(l Logger) *AccountVerifier {
	v.logger = normalizeLogger(l)
	return v
}

// WithActivitySink sets the sink used to emit login events.
func (v *AccountVerifier) WithActivitySink(sink ActivitySink) *AccountVerifier {
	v.activity = normalizeActivitySink(sink)
	return v
}

// WithTimeout bounds a single verification
func (v *AccountVerifier) WithTimeout(d time.Duration) *AccountVerifier {
	v.timeout = d
	return v
}

// Verify finds the account, compares the secret and returns a session.
// The identifier is trimmed and lowercased, the secret is compared as is.
func (v *AccountVerifier) Verify(ctx context.Context, identifier, secret string) (*Session, error) {
	select {
	case <-ctx.Done():
		return nil, NewCredentialError(ReasonTimeout, ctx.Err())
	default:
	}

	ctx, cancel := withTimeout(ctx, v.timeout)
	defer cancel()

	session, err := v.verify(ctx, NormalizeIdentifier(identifier), secret)
	if err != nil {
		if ctx.Err() != nil {
			err = NewCredentialError(ReasonTimeout, ctx.Err())
		}
		v.recordFailure(ctx, identifier, err)
		return nil, err
	}

	recordActivity(ctx, v.activity, v.logger, ActivityEvent{
		Type:     ActivityLoginSuccess,
		Username: session.Profile.Username,
		Role:     session.Role,
	})

	return session, nil
}

func (v *AccountVerifier) verify(ctx context.Context, identifier, secret string) (*Session, error) {
	if identifier == "" {
		return nil, NewCredentialError(ReasonNotFound)
	}

	account, err := v.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if IsAccountNotFound(err) {
			burnCompare(secret)
			return nil, NewCredentialError(ReasonNotFound)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account during verification")
	}

	if account.LoginAttemptAt != nil && IsOutsideThresholdPeriod(*account.LoginAttemptAt, CoolDownPeriod) {
		account.LoginAttempts = 0
	}

	//if we have too many attempts in the given window, cool off!
	if account.LoginAttempts > MaxLoginAttempts {
		v.logger.Warn("login blocked", "username", account.Username, "error", ErrTooManyLoginAttempts)
		return nil, NewCredentialError(ReasonBadCredentials, ErrTooManyLoginAttempts)
	}

	if err := ComparePasswordAndHash(secret, account.PasswordHash); err != nil {
		if err2 := v.store.TrackAttemptedLogin(ctx, account); err2 != nil {
			v.logger.Error("failed to track login attempt", "username", account.Username, "error", err2)
		}
		return nil, NewCredentialError(ReasonBadCredentials)
	}

	if err := v.store.TrackSuccessfulLogin(ctx, account); err != nil {
		v.logger.Error("failed to track successful login", "username", account.Username, "error", err)
	}

	if role, ok := NormalizeRole(string(account.Role)); ok {
		account.Role = role
	}

	token, err := v.tokens.Generate(account)
	if err != nil {
		return nil, err
	}

	return &Session{
		Token:   token,
		Role:    account.Role,
		Profile: account.Profile(),
	}, nil
}

func (v *AccountVerifier) recordFailure(ctx context.Context, identifier string, err error) {
	reason := "internal"
	var cerr *CredentialError
	if errors.As(err, &cerr) {
		reason = string(cerr.Reason)
	}

	v.logger.Info("login failed", "identifier", NormalizeIdentifier(identifier), "reason", reason)
	recordActivity(ctx, v.activity, v.logger, ActivityEvent{
		Type:     ActivityLoginFailure,
		Username: NormalizeIdentifier(identifier),
		Reason:   reason,
	})
}
