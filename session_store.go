package auth

import (
	"bytes"
	"context"
	"encoding/json"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultSessionKey is where the session record lives
const DefaultSessionKey = "patientipr_auth"

// KeyValue is the storage port used by the session store. Get returns
// ErrKeyNotFound for missing keys.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// SessionStore persists the session across restarts.
// Load returns nil, nil when nothing usable is stored.
type SessionStore interface {
	Persist(ctx context.Context, session *Session) error
	Load(ctx context.Context) (*Session, error)
	Clear(ctx context.Context) error
}

// sessionRecord mirrors the stored document. Pointers let us tell a null
// field from a missing one.
type sessionRecord struct {
	Token   *string  `json:"token"`
	Role    *string  `json:"role"`
	Profile *Profile `json:"profile"`
}

// KeyValueSessionStore keeps the session as a single JSON document
type KeyValueSessionStore struct {
	kv     KeyValue
	key    string
	logger Logger
}

// SessionStoreOption configures the store
type SessionStoreOption func(*KeyValueSessionStore)

// WithSessionKey overrides DefaultSessionKey
func WithSessionKey(key string) SessionStoreOption {
	return func(s *KeyValueSessionStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithStoreLogger sets the store logger
func WithStoreLogger(logger Logger) SessionStoreOption {
	return func(s *KeyValueSessionStore) {
		s.logger = normalizeLogger(logger)
	}
}

// NewSessionStore creates a session store on top of kv
func NewSessionStore(kv KeyValue, opts ...SessionStoreOption) *KeyValueSessionStore {
	s := &KeyValueSessionStore{
		kv:     kv,
		key:    DefaultSessionKey,
		logger: defLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the storage key in use
func (s *KeyValueSessionStore) Key() string {
	return s.key
}

// Persist writes the full session in one Set call
func (s *KeyValueSessionStore) Persist(ctx context.Context, session *Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	token := session.Token
	role := string(session.Role)
	profile := session.Profile

	payload, err := json.Marshal(sessionRecord{
		Token:   &token,
		Role:    &role,
		Profile: &profile,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session")
	}

	if err := s.kv.Set(ctx, s.key, payload); err != nil {
		return goerrors.Wrap(NewTransportError(err, "persist session"), goerrors.CategoryExternal, "failed to persist session")
	}

	return nil
}

// Load reads the stored session. Corrupt or partial records are purged and
// reported as no session.
func (s *KeyValueSessionStore) Load(ctx context.Context) (*Session, error) {
	payload, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if IsKeyNotFound(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(NewTransportError(err, "load session"), goerrors.CategoryExternal, "failed to load session")
	}

	session, reason := decodeSession(payload)
	if session != nil {
		return session, nil
	}

	s.logger.Warn("discarding stored session", "key", s.key, "reason", reason)

	if err := s.kv.Delete(ctx, s.key); err != nil {
		s.logger.Error("failed to purge stored session", "key", s.key, "error", err)
	}

	return nil, nil
}

// Clear removes the stored session. A missing key is not an error.
func (s *KeyValueSessionStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil && !IsKeyNotFound(err) {
		return goerrors.Wrap(NewTransportError(err, "clear session"), goerrors.CategoryExternal, "failed to clear session")
	}
	return nil
}

func decodeSession(payload []byte) (*Session, string) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, "empty payload"
	}

	var rec *sessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, "invalid json"
	}

	if rec == nil {
		return nil, "null record"
	}

	token := deref(rec.Token)
	role := deref(rec.Role)

	switch {
	case token == "" && role == "":
		return nil, "empty record"
	case token == "" || role == "":
		return nil, "partial record"
	case rec.Profile == nil || rec.Profile.Username == "":
		return nil, "missing profile"
	}

	return &Session{
		Token:   token,
		Role:    Role(role),
		Profile: *rec.Profile,
	}, ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
