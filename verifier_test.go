package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/patientipr/portal-auth"
)

// slowAccounts blocks lookups until the context ends
type slowAccounts struct {
	auth.AccountStore
}

func (s slowAccounts) GetByIdentifier(ctx context.Context, _ string) (*auth.Account, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAccountVerifier_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("Demo accounts log in with their role", func(t *testing.T) {
		verifier := auth.NewAccountVerifier(newDemoAccounts(t), newTokenService())

		for _, role := range auth.GetAllRoles() {
			session, err := verifier.Verify(ctx, string(role), string(role))
			require.NoError(t, err)
			assert.Equal(t, role, session.Role)
			assert.Equal(t, string(role), session.Profile.Username)
			assert.NotEmpty(t, session.Token)
			assert.NoError(t, session.Validate())
		}
	})

	t.Run("Identifier is trimmed and lowercased", func(t *testing.T) {
		verifier := auth.NewAccountVerifier(newDemoAccounts(t), newTokenService())

		session, err := verifier.Verify(ctx, "Admin ", "admin")
		require.NoError(t, err)
		assert.Equal(t, auth.RoleAdmin, session.Role)
	})

	t.Run("Email works as identifier", func(t *testing.T) {
		verifier := auth.NewAccountVerifier(newDemoAccounts(t), newTokenService())

		session, err := verifier.Verify(ctx, "AGENT@gmail.com", "agent")
		require.NoError(t, err)
		assert.Equal(t, auth.RoleAgent, session.Role)
	})

	t.Run("Secret is compared as is", func(t *testing.T) {
		verifier := auth.NewAccountVerifier(newDemoAccounts(t), newTokenService())

		_, err := verifier.Verify(ctx, "admin", "admin ")
		cerr, ok := auth.AsCredentialError(err)
		require.True(t, ok)
		assert.Equal(t, auth.ReasonBadCredentials, cerr.Reason)

		_, err = verifier.Verify(ctx, "admin", "Admin")
		assert.Error(t, err)
	})

	t.Run("Unknown identifier and wrong secret share a message", func(t *testing.T) {
		sink := &recordingSink{}
		verifier := auth.NewAccountVerifier(newDemoAccounts(t), newTokenService()).
			WithLogger(&captureLogger{}).
			WithActivitySink(sink)

		_, errUnknown := verifier.Verify(ctx, "nobody", "whatever")
		_, errWrong := verifier.Verify(ctx, "user", "wrong")

		cerr, ok := auth.AsCredentialError(errUnknown)
		require.True(t, ok)
		assert.Equal(t, auth.ReasonNotFound, cerr.Reason)

		cerr, ok = auth.AsCredentialError(errWrong)
		require.True(t, ok)
		assert.Equal(t, auth.ReasonBadCredentials, cerr.Reason)

		assert.Equal(t, auth.UserMessage(errUnknown), auth.UserMessage(errWrong))
		assert.Equal(t, auth.MessageInvalidCredentials, auth.UserMessage(errWrong))
		assert.Equal(t, []auth.ActivityEventType{auth.ActivityLoginFailure, auth.ActivityLoginFailure}, sink.types())
	})

	t.Run("Empty identifier is not found", func(t *testing.T) {
		verifier := auth.NewAccountVerifier(newDemoAccounts(t), newTokenService())

		_, err := verifier.Verify(ctx, "   ", "x")
		cerr, ok := auth.AsCredentialError(err)
		require.True(t, ok)
		assert.Equal(t, auth.ReasonNotFound, cerr.Reason)
	})

	t.Run("Too many attempts lock the account", func(t *testing.T) {
		store := newDemoAccounts(t)
		verifier := auth.NewAccountVerifier(store, newTokenService()).WithLogger(&captureLogger{})

		for i := 0; i <= auth.MaxLoginAttempts; i++ {
			_, err := verifier.Verify(ctx, "user", "wrong")
			require.Error(t, err)
		}

		_, err := verifier.Verify(ctx, "user", "user")
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrTooManyLoginAttempts))
		assert.Equal(t, auth.MessageInvalidCredentials, auth.UserMessage(err))
	})

	t.Run("Successful login resets attempts", func(t *testing.T) {
		store := newDemoAccounts(t)
		verifier := auth.NewAccountVerifier(store, newTokenService())

		_, err := verifier.Verify(ctx, "user", "wrong")
		require.Error(t, err)
		_, err = verifier.Verify(ctx, "user", "user")
		require.NoError(t, err)

		acc, err := store.GetByIdentifier(ctx, "user")
		require.NoError(t, err)
		assert.Equal(t, 0, acc.LoginAttempts)
		assert.NotNil(t, acc.LoggedInAt)
	})

	t.Run("Expired deadline is a timeout", func(t *testing.T) {
		verifier := auth.NewAccountVerifier(slowAccounts{}, newTokenService()).
			WithLogger(&captureLogger{}).
			WithTimeout(20 * time.Millisecond)

		_, err := verifier.Verify(ctx, "user", "user")
		cerr, ok := auth.AsCredentialError(err)
		require.True(t, ok)
		assert.Equal(t, auth.ReasonTimeout, cerr.Reason)
		assert.Equal(t, auth.MessageTimeout, auth.UserMessage(err))
	})

	t.Run("Cancelled context is a timeout", func(t *testing.T) {
		verifier := auth.NewAccountVerifier(newDemoAccounts(t), newTokenService())

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := verifier.Verify(cctx, "user", "user")
		cerr, ok := auth.AsCredentialError(err)
		require.True(t, ok)
		assert.Equal(t, auth.ReasonTimeout, cerr.Reason)
	})

	t.Run("Legacy roles are normalized", func(t *testing.T) {
		hash, err := auth.HashPassword("secret1")
		require.NoError(t, err)
		store, err := auth.NewMemoryAccounts(&auth.Account{
			Username:     "legacy",
			Email:        "legacy@example.com",
			Name:         "Legacy",
			Role:         auth.Role("superadmin"),
			PasswordHash: hash,
		})
		require.NoError(t, err)

		session, err := auth.NewAccountVerifier(store, newTokenService()).Verify(ctx, "legacy", "secret1")
		require.NoError(t, err)
		assert.Equal(t, auth.RoleAdmin, session.Role)
	})
}
