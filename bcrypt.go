package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// MaxSecretBytes is the longest secret bcrypt will hash
const MaxSecretBytes = 72

// PasswordHashCost is the bcrypt cost used by HashPassword. Tests lower it.
var PasswordHashCost = bcrypt.DefaultCost

// HashPassword hashes secret with PasswordHashCost. Secrets longer than
// MaxSecretBytes fail with a field validation error on "secret".
func HashPassword(secret string) (string, error) {
	switch {
	case secret == "":
		return "", ErrNoEmptyString
	case len(secret) > MaxSecretBytes:
		return "", validateFields(fieldCheck{field: "secret", err: errors.New(msgSecretTooLong)})
	}

	h, err := bcrypt.GenerateFromPassword([]byte(secret), PasswordHashCost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(h), nil
}

// ComparePasswordAndHash checks secret against a stored hash. A secret
// that could never have been hashed is a plain mismatch.
func ComparePasswordAndHash(secret, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword),
		errors.Is(err, bcrypt.ErrPasswordTooLong):
		return ErrMismatchedHashAndPassword
	default:
		return err
	}
}

// RandomPasswordHash hashes a random secret, used to burn the same time
// on unknown identifiers as on real ones
func RandomPasswordHash() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random secret")
	}
	return HashPassword(hex.EncodeToString(buf))
}
