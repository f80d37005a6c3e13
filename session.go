package auth

import (
	"fmt"
)

// Profile is display data attached to a session. It is never used for
// authorization.
type Profile struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Session is the authenticated identity held by the client. Token and Role
// are both present or both absent.
type Session struct {
	Token   string  `json:"token"`
	Role    Role    `json:"role"`
	Profile Profile `json:"profile"`
}

// IsAuthenticated reports whether the session carries a token
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Token != ""
}

// Validate checks the session is fully formed. The role is not checked
// against the closed set, the access guard handles unknown roles.
func (s *Session) Validate() error {
	if s == nil {
		return ErrIncompleteSession
	}

	if s.Token == "" || s.Role == "" {
		return ErrIncompleteSession.Clone().
			WithMetadata(map[string]any{
				"has_token": s.Token != "",
				"has_role":  s.Role != "",
			})
	}

	if s.Profile.Username == "" {
		return ErrIncompleteSession.Clone().
			WithMetadata(map[string]any{"missing": "profile.username"})
	}

	return nil
}

// Clone returns a deep copy
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (s Session) String() string {
	token := "<none>"
	if s.Token != "" {
		token = "<redacted>"
	}
	return fmt.Sprintf(
		"token=%s role=%s user=%s email=%s",
		token,
		s.Role,
		s.Profile.Username,
		s.Profile.Email,
	)
}
