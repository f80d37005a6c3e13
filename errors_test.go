package auth_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"

	auth "github.com/patientipr/portal-auth"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not found", auth.NewCredentialError(auth.ReasonNotFound), auth.MessageInvalidCredentials},
		{"bad credentials", auth.NewCredentialError(auth.ReasonBadCredentials), auth.MessageInvalidCredentials},
		{"credential timeout", auth.NewCredentialError(auth.ReasonTimeout), auth.MessageTimeout},
		{"wrapped credential error", fmt.Errorf("login: %w", auth.NewCredentialError(auth.ReasonNotFound)), auth.MessageInvalidCredentials},
		{"deadline", context.DeadlineExceeded, auth.MessageTimeout},
		{"pending", auth.ErrSubmissionPending, auth.MessageSubmissionPending},
		{"duplicate", auth.ErrDuplicateIdentifier, auth.MessageDuplicate},
		{"token", auth.ErrTokenInvalid.Clone(), auth.MessageTokenInvalid},
		{"transport", auth.NewTransportError(errors.New("refused"), "login"), auth.MessageGeneric},
		{"validation", auth.ValidateNewSecret("abc"), "Password must be at least 6 characters."},
		{"plain", errors.New("boom"), auth.MessageGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.UserMessage(tt.err))
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	wrapped := goerrors.Wrap(auth.ErrDuplicateIdentifier, goerrors.CategoryInternal, "create account")
	assert.True(t, auth.IsDuplicateIdentifier(wrapped))
	assert.False(t, auth.IsTokenInvalid(wrapped))

	assert.True(t, auth.IsTokenInvalid(auth.ErrTokenInvalid.Clone().WithMetadata(map[string]any{"status": "expired"})))
	assert.False(t, auth.IsValidationError(auth.ErrTokenInvalid), "token errors are not form errors")
	assert.True(t, auth.IsValidationError(auth.ValidateEmail("nope")))

	assert.True(t, auth.IsTransportError(auth.NewTransportError(errors.New("x"), "op")))
	assert.Nil(t, auth.NewTransportError(nil, "op"))

	assert.True(t, auth.IsAccountNotFound(auth.ErrAccountNotFound))
	assert.True(t, auth.IsKeyNotFound(auth.ErrKeyNotFound))
	assert.False(t, auth.IsKeyNotFound(errors.New("key not found")))

	cerr, ok := auth.AsCredentialError(fmt.Errorf("wrap: %w", auth.NewCredentialError(auth.ReasonTimeout, context.DeadlineExceeded)))
	assert.True(t, ok)
	assert.Equal(t, auth.ReasonTimeout, cerr.Reason)
	assert.ErrorIs(t, cerr, context.DeadlineExceeded)
	assert.Contains(t, cerr.Error(), "timeout")
}

func TestFailureResponse_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		check  func(t *testing.T, rebuilt error)
	}{
		{
			name: "bad credentials", err: auth.NewCredentialError(auth.ReasonNotFound),
			status: 401, code: auth.CodeBadCredentials,
			check: func(t *testing.T, rebuilt error) {
				cerr, ok := auth.AsCredentialError(rebuilt)
				assert.True(t, ok)
				assert.Equal(t, auth.ReasonBadCredentials, cerr.Reason)
			},
		},
		{
			name: "timeout", err: auth.NewCredentialError(auth.ReasonTimeout),
			status: 408, code: auth.CodeTimeout,
			check: func(t *testing.T, rebuilt error) {
				assert.Equal(t, auth.MessageTimeout, auth.UserMessage(rebuilt))
			},
		},
		{
			name: "duplicate", err: auth.ErrDuplicateIdentifier,
			status: 409, code: auth.CodeDuplicateIdentifier,
			check: func(t *testing.T, rebuilt error) {
				assert.True(t, auth.IsDuplicateIdentifier(rebuilt))
			},
		},
		{
			name: "token", err: auth.ErrTokenInvalid,
			status: 400, code: auth.CodeTokenInvalid,
			check: func(t *testing.T, rebuilt error) {
				assert.True(t, auth.IsTokenInvalid(rebuilt))
			},
		},
		{
			name: "validation", err: auth.ValidateEmail("nope"),
			status: 400, code: auth.CodeValidation,
			check: func(t *testing.T, rebuilt error) {
				assert.True(t, auth.IsValidationError(rebuilt))
				assert.Equal(t, "Please enter a valid email address.", auth.UserMessage(rebuilt))
			},
		},
		{
			name: "transport", err: auth.NewTransportError(errors.New("refused"), "op"),
			status: 502, code: auth.CodeTransport,
			check: func(t *testing.T, rebuilt error) {
				assert.True(t, auth.IsTransportError(rebuilt))
			},
		},
		{
			name: "unauthenticated", err: auth.ErrUnableToFindSession,
			status: 401, code: auth.CodeUnauthenticated,
			check: func(t *testing.T, rebuilt error) {
				assert.True(t, goerrors.IsCategory(rebuilt, goerrors.CategoryAuth))
			},
		},
		{
			name: "internal", err: errors.New("disk on fire"),
			status: 500, code: auth.CodeTransport,
			check: func(t *testing.T, rebuilt error) {
				assert.True(t, auth.IsTransportError(rebuilt))
				assert.Equal(t, auth.MessageGeneric, auth.UserMessage(rebuilt))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := auth.FailureResponse(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, res.Code)
			assert.False(t, res.Success)
			assert.Equal(t, auth.UserMessage(tt.err), res.Message)

			tt.check(t, res.Err())
		})
	}

	ok := auth.AuthResponse{Success: true}
	assert.NoError(t, ok.Err())
}

func TestAuthResponse_Session(t *testing.T) {
	res := auth.AuthResponse{Success: true, Token: "tok", Role: "superadmin", Profile: &auth.Profile{Username: "root"}}
	session, err := res.Session()
	assert.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, session.Role)

	res = auth.AuthResponse{Success: true, Token: "tok", Role: "auditor", Profile: &auth.Profile{Username: "x"}}
	session, err = res.Session()
	assert.NoError(t, err)
	assert.Equal(t, auth.Role("auditor"), session.Role)

	res = auth.AuthResponse{Success: true, Role: "admin"}
	_, err = res.Session()
	assert.True(t, auth.IsTransportError(err))
}
