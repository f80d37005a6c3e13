package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Error codes carried by failed responses so the client can rebuild the
// error taxonomy
const (
	CodeValidation          = "validation"
	CodeBadCredentials      = "bad_credentials"
	CodeDuplicateIdentifier = "duplicate_identifier"
	CodeTokenInvalid        = "token_invalid"
	CodeTimeout             = "timeout"
	CodeTransport           = "transport"
	CodeUnauthenticated     = "unauthenticated"
)

// LoginPayload is the body of POST /auth/login
type LoginPayload struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// ResetRequestPayload is the body of POST /auth/password-reset-request
type ResetRequestPayload struct {
	Email string `json:"email"`
}

// ResetPayload is the body of POST /auth/password-reset
type ResetPayload struct {
	Token     string `json:"token"`
	NewSecret string `json:"newSecret"`
}

// AuthResponse is the body of every /auth response
type AuthResponse struct {
	Success  bool                  `json:"success"`
	Token    string                `json:"token,omitempty"`
	Role     string                `json:"role,omitempty"`
	Profile  *Profile              `json:"profile,omitempty"`
	Message  string                `json:"message"`
	Redirect string                `json:"redirect,omitempty"`
	Code     string                `json:"code,omitempty"`
	Errors   []goerrors.FieldError `json:"errors,omitempty"`
}

// Session builds a session from a successful login response. Legacy role
// names are normalized.
func (r *AuthResponse) Session() (*Session, error) {
	role := Role(r.Role)
	if normalized, ok := NormalizeRole(r.Role); ok {
		role = normalized
	}

	session := &Session{Token: r.Token, Role: role}
	if r.Profile != nil {
		session.Profile = *r.Profile
	}

	if err := session.Validate(); err != nil {
		return nil, NewTransportError(err, "incomplete session in response")
	}
	return session, nil
}

// Err rebuilds the error a failed response stands for
func (r *AuthResponse) Err() error {
	if r.Success {
		return nil
	}

	switch r.Code {
	case CodeValidation:
		if len(r.Errors) > 0 {
			return goerrors.NewValidation(msgInvalidForm, r.Errors...).
				WithCode(goerrors.CodeBadRequest)
		}
		return goerrors.New(r.Message, goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	case CodeBadCredentials:
		return NewCredentialError(ReasonBadCredentials)
	case CodeTimeout:
		return NewCredentialError(ReasonTimeout)
	case CodeDuplicateIdentifier:
		return ErrDuplicateIdentifier.Clone()
	case CodeTokenInvalid:
		return ErrTokenInvalid.Clone()
	case CodeUnauthenticated:
		return ErrUnableToFindSession.Clone()
	default:
		return ErrTransport.Clone().
			WithMetadata(map[string]any{"code": r.Code, "message": r.Message})
	}
}

// FailureResponse maps err to a response body and HTTP status
func FailureResponse(err error) (int, AuthResponse) {
	res := AuthResponse{Success: false, Message: UserMessage(err)}

	if cerr, ok := AsCredentialError(err); ok {
		rich := cerr.RichError()
		if cerr.Reason == ReasonTimeout {
			res.Code = CodeTimeout
		} else {
			res.Code = CodeBadCredentials
		}
		return rich.Code, res
	}

	switch {
	case IsDuplicateIdentifier(err):
		res.Code = CodeDuplicateIdentifier
		return http.StatusConflict, res
	case IsTokenInvalid(err):
		res.Code = CodeTokenInvalid
		return http.StatusBadRequest, res
	case IsTransportError(err):
		res.Code = CodeTransport
		return http.StatusBadGateway, res
	case goerrors.IsCategory(err, goerrors.CategoryAuth):
		res.Code = CodeUnauthenticated
		return http.StatusUnauthorized, res
	}

	if verrs, ok := goerrors.GetValidationErrors(err); ok {
		res.Code = CodeValidation
		res.Errors = verrs
		return http.StatusBadRequest, res
	}

	if goerrors.IsCategory(err, goerrors.CategoryValidation) {
		res.Code = CodeValidation
		return http.StatusBadRequest, res
	}

	res.Code = CodeTransport
	return http.StatusInternalServerError, res
}
