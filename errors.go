package auth

import (
	"context"
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes owned by this package. The generic auth codes come from
// go-errors (TextCodeInvalidCredentials, TextCodeTooManyAttempts, ...).
const (
	TextCodeDuplicateIdentifier = "DUPLICATE_IDENTIFIER"
	TextCodeTransport           = "TRANSPORT"
	TextCodeTokenInvalid        = "TOKEN_INVALID"
	TextCodeIncompleteSession   = "INCOMPLETE_SESSION"
	TextCodeSubmissionPending   = "SUBMISSION_PENDING"
	TextCodeFlowClosed          = "FLOW_CLOSED"
	TextCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	TextCodeKeyNotFound         = "KEY_NOT_FOUND"
)

// Messages shown to the user. Nothing else crosses the flow boundary.
const (
	MessageInvalidCredentials = "Username or password is incorrect."
	MessageTimeout            = "The server took too long to respond. Please try again."
	MessageDuplicate          = "An account with that username or email already exists."
	MessageTokenInvalid       = "This reset link is invalid or has expired."
	MessageSubmissionPending  = "Please wait, your request is still being processed."
	MessageGeneric            = "Something went wrong. Please try again."
	MessageResetRequested     = "If an account exists for that email, a reset link has been sent."
	MessageSignupComplete     = "Account created. Please sign in."
	MessageResetComplete      = "Your password has been reset. Please sign in."
	MessageLoggedIn           = "Signed in."
	MessageLoggedOut          = "Signed out."
)

// ErrDuplicateIdentifier is returned when a username or email is taken
var ErrDuplicateIdentifier = goerrors.New("identifier already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentifier).
	WithCode(goerrors.CodeConflict)

// ErrTokenInvalid is returned for unknown, used or expired reset tokens
var ErrTokenInvalid = goerrors.New("invalid or expired password reset token", goerrors.CategoryValidation).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrTransport is returned when the backend cannot be reached or answers
// with something we cannot understand
var ErrTransport = goerrors.New("auth backend unavailable", goerrors.CategoryExternal).
	WithTextCode(TextCodeTransport).
	WithCode(http.StatusBadGateway)

// ErrIncompleteSession is returned for sessions missing token, role or username
var ErrIncompleteSession = goerrors.New("session is incomplete", goerrors.CategoryBadInput).
	WithTextCode(TextCodeIncompleteSession).
	WithCode(goerrors.CodeBadRequest)

// ErrSubmissionPending is returned when a flow is submitted twice
var ErrSubmissionPending = goerrors.New("a submission is already pending", goerrors.CategoryOperation).
	WithTextCode(TextCodeSubmissionPending).
	WithCode(goerrors.CodeTooManyRequests)

// ErrFlowClosed is returned when a closed flow is submitted
var ErrFlowClosed = goerrors.New("flow is closed", goerrors.CategoryOperation).
	WithTextCode(TextCodeFlowClosed)

// ErrAccountNotFound is returned by account stores
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrKeyNotFound is returned by KeyValue adapters for missing keys
var ErrKeyNotFound = goerrors.New("key not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeKeyNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password can't be an empty string", goerrors.CategoryValidation).
	WithTextCode(goerrors.TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when a password does not match its hash
var ErrMismatchedHashAndPassword = goerrors.New("credentials mismatch", goerrors.CategoryAuth).
	WithTextCode(goerrors.TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrTooManyLoginAttempts is logged when an account is cooling down
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode(goerrors.TextCodeTooManyAttempts).
	WithCode(goerrors.CodeTooManyRequests)

// ErrUnableToFindSession is the error when our request has no token
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithTextCode(goerrors.TextCodeSessionNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from session token
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode(goerrors.TextCodeSessionDecodeError).
	WithCode(goerrors.CodeUnauthorized)

// FailureReason tells why credentials were rejected
type FailureReason string

const (
	ReasonNotFound       FailureReason = "not_found"
	ReasonBadCredentials FailureReason = "bad_credentials"
	ReasonTimeout        FailureReason = "timeout"
)

// CredentialError is returned by CredentialVerifier implementations.
// not_found and bad_credentials produce the same user message.
type CredentialError struct {
	Reason FailureReason
	Source error
}

// NewCredentialError creates a CredentialError for the given reason
func NewCredentialError(reason FailureReason, source ...error) *CredentialError {
	e := &CredentialError{Reason: reason}
	if len(source) > 0 {
		e.Source = source[0]
	}
	return e
}

func (e *CredentialError) Error() string {
	if e.Source != nil {
		return "credential verification failed: " + string(e.Reason) + ": " + e.Source.Error()
	}
	return "credential verification failed: " + string(e.Reason)
}

func (e *CredentialError) Unwrap() error {
	return e.Source
}

// RichError converts the error into a go-errors value for HTTP responses
func (e *CredentialError) RichError() *goerrors.Error {
	if e.Reason == ReasonTimeout {
		return goerrors.New(MessageTimeout, goerrors.CategoryExternal).
			WithTextCode(string(ReasonTimeout)).
			WithCode(goerrors.CodeRequestTimeout)
	}
	return goerrors.New(MessageInvalidCredentials, goerrors.CategoryAuth).
		WithTextCode(goerrors.TextCodeInvalidCredentials).
		WithCode(goerrors.CodeUnauthorized)
}

// AsCredentialError returns the CredentialError in the chain, if any
func AsCredentialError(err error) (*CredentialError, bool) {
	var cerr *CredentialError
	if errors.As(err, &cerr) {
		return cerr, true
	}
	return nil, false
}

// IsDuplicateIdentifier reports whether err is a duplicate identifier error
func IsDuplicateIdentifier(err error) bool {
	return hasTextCode(err, TextCodeDuplicateIdentifier)
}

// IsTokenInvalid reports whether err is an invalid reset token error
func IsTokenInvalid(err error) bool {
	return hasTextCode(err, TextCodeTokenInvalid)
}

// IsTransportError reports whether err is a transport failure
func IsTransportError(err error) bool {
	return hasTextCode(err, TextCodeTransport)
}

// IsAccountNotFound reports whether err means the account does not exist
func IsAccountNotFound(err error) bool {
	return hasTextCode(err, TextCodeAccountNotFound)
}

// IsKeyNotFound reports whether err means the key does not exist
func IsKeyNotFound(err error) bool {
	return hasTextCode(err, TextCodeKeyNotFound)
}

// IsValidationError reports whether err carries field validation errors
func IsValidationError(err error) bool {
	_, ok := goerrors.GetValidationErrors(err)
	return ok || goerrors.IsCategory(err, goerrors.CategoryValidation) && !IsTokenInvalid(err)
}

// wrapped go-errors values are clones, so we match on text codes
func hasTextCode(err error, code string) bool {
	var rich *goerrors.Error
	for err != nil {
		if !goerrors.As(err, &rich) {
			return false
		}
		if rich.TextCode == code {
			return true
		}
		err = rich.Source
	}
	return false
}

// NewTransportError wraps an I/O or protocol failure
func NewTransportError(source error, message string) error {
	if source == nil {
		return nil
	}
	return ErrTransport.Clone().
		WithMetadata(map[string]any{"operation": message, "source": source.Error()})
}

// UserMessage converts any error into the one message a user is shown
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	if cerr, ok := AsCredentialError(err); ok {
		if cerr.Reason == ReasonTimeout {
			return MessageTimeout
		}
		return MessageInvalidCredentials
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return MessageTimeout
	}

	switch {
	case hasTextCode(err, TextCodeSubmissionPending):
		return MessageSubmissionPending
	case IsDuplicateIdentifier(err):
		return MessageDuplicate
	case IsTokenInvalid(err):
		return MessageTokenInvalid
	case IsTransportError(err):
		return MessageGeneric
	}

	if verrs, ok := goerrors.GetValidationErrors(err); ok && len(verrs) > 0 {
		return verrs[0].Message
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Category == goerrors.CategoryValidation && rich.Message != "" {
		return rich.Message
	}

	return MessageGeneric
}
