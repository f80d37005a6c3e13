package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the JWT claims carried by a session token
type SessionClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid"`
	Role     Role   `json:"role"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Profile returns the display data carried by the claims
func (c *SessionClaims) Profile() Profile {
	return Profile{
		Name:     c.Name,
		Username: c.Username,
		Email:    c.Email,
	}
}

// Session rebuilds the session the token was issued for
func (c *SessionClaims) Session(token string) *Session {
	return &Session{
		Token:   token,
		Role:    c.Role,
		Profile: c.Profile(),
	}
}

// HasRole reports whether the claims carry one of roles
func (c *SessionClaims) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}
