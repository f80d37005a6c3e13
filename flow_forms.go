package auth

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// MinSecretLength is the shortest secret accepted on signup and reset
const MinSecretLength = 6

const (
	msgIdentifierRequired = "Please enter your username."
	msgSecretRequired     = "Please enter your password."
	msgNameRequired       = "Please enter your full name."
	msgEmailInvalid       = "Please enter a valid email address."
	msgSecretTooShort     = "Password must be at least 6 characters."
	msgSecretTooLong      = "Password is too long."
	msgSecretMismatch     = "Passwords do not match."
	msgResetTokenMissing  = "Invalid or missing reset token."
	msgInvalidForm        = "invalid form"
)

// bcrypt ignores input past MaxSecretBytes, so longer secrets are refused
var newSecretRules = []validation.Rule{
	validation.Required.Error(msgSecretTooShort),
	validation.RuneLength(MinSecretLength, 0).Error(msgSecretTooShort),
	validation.Length(0, MaxSecretBytes).Error(msgSecretTooLong),
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// LoginForm is the login input
type LoginForm struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// Validate requires both fields. The secret is not trimmed.
func (f LoginForm) Validate() error {
	return validateFields(
		check("identifier", strings.TrimSpace(f.Identifier),
			validation.Required.Error(msgIdentifierRequired)),
		check("secret", f.Secret,
			validation.Required.Error(msgSecretRequired)),
	)
}

// SignupForm is the signup input. Identifier is optional.
type SignupForm struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Identifier   string `json:"identifier,omitempty"`
	Secret       string `json:"secret"`
	Confirmation string `json:"confirmation"`
}

func (f SignupForm) Validate() error {
	return validateFields(
		check("name", strings.TrimSpace(f.Name),
			validation.Required.Error(msgNameRequired),
			validation.RuneLength(2, 0).Error(msgNameRequired)),
		check("email", strings.TrimSpace(f.Email),
			validation.Required.Error(msgEmailInvalid),
			validation.Match(emailPattern).Error(msgEmailInvalid)),
		check("secret", f.Secret, newSecretRules...),
		check("confirmation", f.Confirmation,
			validation.By(equals(f.Secret))),
	)
}

// Request converts the form into the backend payload
func (f SignupForm) Request() SignupRequest {
	identifier := NormalizeIdentifier(f.Identifier)
	if identifier == "" {
		identifier = UsernameFromEmail(f.Email)
	}
	return SignupRequest{
		Name:       strings.TrimSpace(f.Name),
		Email:      NormalizeIdentifier(f.Email),
		Identifier: identifier,
		Secret:     f.Secret,
	}
}

// ForgotPasswordForm is the reset request input
type ForgotPasswordForm struct {
	Email string `json:"email"`
}

func (f ForgotPasswordForm) Validate() error {
	return validateFields(
		check("email", strings.TrimSpace(f.Email),
			validation.Required.Error(msgEmailInvalid),
			validation.Match(emailPattern).Error(msgEmailInvalid)),
	)
}

// ResetPasswordForm is the reset input. Token comes from the link.
type ResetPasswordForm struct {
	Token        string `json:"token"`
	Secret       string `json:"secret"`
	Confirmation string `json:"confirmation"`
}

func (f ResetPasswordForm) Validate() error {
	return validateFields(
		check("token", strings.TrimSpace(f.Token),
			validation.Required.Error(msgResetTokenMissing)),
		check("secret", f.Secret, newSecretRules...),
		check("confirmation", f.Confirmation,
			validation.By(equals(f.Secret))),
	)
}

// ValidateSignupRequest checks a signup payload on the backend side
func ValidateSignupRequest(req SignupRequest) error {
	return validateFields(
		check("name", strings.TrimSpace(req.Name),
			validation.Required.Error(msgNameRequired),
			validation.RuneLength(2, 0).Error(msgNameRequired)),
		check("email", strings.TrimSpace(req.Email),
			validation.Required.Error(msgEmailInvalid),
			validation.Match(emailPattern).Error(msgEmailInvalid)),
		check("secret", req.Secret, newSecretRules...),
	)
}

// ValidateEmail checks an email address against the portal pattern
func ValidateEmail(email string) error {
	return ForgotPasswordForm{Email: email}.Validate()
}

// ValidateNewSecret checks a new secret on the backend side
func ValidateNewSecret(secret string) error {
	return validateFields(
		check("secret", secret, newSecretRules...),
	)
}

func equals(expected string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != expected {
			return errors.New(msgSecretMismatch)
		}
		return nil
	}
}

type fieldCheck struct {
	field string
	err   error
}

func check(field string, value any, rules ...validation.Rule) fieldCheck {
	return fieldCheck{field: field, err: validation.Validate(value, rules...)}
}

// validateFields keeps field errors in declaration order so the first one
// is the message shown to the user
func validateFields(checks ...fieldCheck) error {
	var fieldErrors []goerrors.FieldError
	for _, c := range checks {
		if c.err == nil {
			continue
		}
		fieldErrors = append(fieldErrors, goerrors.FieldError{
			Field:   c.field,
			Message: c.err.Error(),
		})
	}

	if len(fieldErrors) == 0 {
		return nil
	}

	return goerrors.NewValidation(msgInvalidForm, fieldErrors...).
		WithCode(goerrors.CodeBadRequest)
}
