package auth

import (
	"context"
	"sync"
)

// Observer receives the session after each transition, nil when logged out
type Observer func(session *Session)

// SessionContext owns the current session. It is loaded from the store when
// created, so nothing can read it before initialization.
type SessionContext struct {
	store    SessionStore
	logger   Logger
	activity ActivitySink

	transition sync.Mutex

	mu        sync.RWMutex
	current   *Session
	observers map[int]Observer
	nextID    int
}

// SessionContextOption configures a SessionContext
type SessionContextOption func(*SessionContext)

// WithContextLogger sets the logger
func WithContextLogger(logger Logger) SessionContextOption {
	return func(s *SessionContext) {
		s.logger = normalizeLogger(logger)
	}
}

// WithContextActivitySink records login/logout transitions
func WithContextActivitySink(sink ActivitySink) SessionContextOption {
	return func(s *SessionContext) {
		s.activity = normalizeActivitySink(sink)
	}
}

// NewSessionContext creates the context and loads the stored session.
// Corrupt stored data is not an error, store I/O failures are.
func NewSessionContext(ctx context.Context, store SessionStore, opts ...SessionContextOption) (*SessionContext, error) {
	s := &SessionContext{
		store:     store,
		logger:    defLogger{},
		activity:  noopActivitySink{},
		observers: make(map[int]Observer),
	}

	for _, opt := range opts {
		opt(s)
	}

	session, err := store.Load(ctx)
	if err != nil {
		s.logger.Error("failed to load session", "error", err)
		return nil, err
	}

	s.current = session
	if session != nil {
		s.logger.Debug("session restored", "user", session.Profile.Username, "role", session.Role)
	}

	return s, nil
}

// Login persists the session and makes it current. If persisting fails the
// current session is left as it was.
func (s *SessionContext) Login(ctx context.Context, session Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	s.transition.Lock()
	defer s.transition.Unlock()

	if err := s.store.Persist(ctx, &session); err != nil {
		s.logger.Error("failed to persist session", "user", session.Profile.Username, "error", err)
		return err
	}

	s.set(session.Clone())

	s.logger.Info("logged in", "user", session.Profile.Username, "role", session.Role)
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		Type:     ActivityLogin,
		Username: session.Profile.Username,
		Role:     session.Role,
	})

	return nil
}

// Logout clears the store and the current session. Logging out twice is a
// no-op.
func (s *SessionContext) Logout(ctx context.Context) error {
	s.transition.Lock()
	defer s.transition.Unlock()

	prev := s.Current()
	if prev == nil {
		return nil
	}

	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error("failed to clear session", "user", prev.Profile.Username, "error", err)
		return err
	}

	s.set(nil)

	s.logger.Info("logged out", "user", prev.Profile.Username)
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		Type:     ActivityLogout,
		Username: prev.Profile.Username,
		Role:     prev.Role,
	})

	return nil
}

// Current returns a copy of the session, or nil
func (s *SessionContext) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// IsAuthenticated reports whether there is a current session
func (s *SessionContext) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.IsAuthenticated()
}

// Role returns the current role, empty when logged out
func (s *SessionContext) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Role
}

// Profile returns the current profile
func (s *SessionContext) Profile() (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Profile{}, false
	}
	return s.current.Profile, true
}

// Subscribe registers fn for every transition. Observers run synchronously
// and must not call Login or Logout.
func (s *SessionContext) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *SessionContext) set(session *Session) {
	s.mu.Lock()
	s.current = session
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(session.Clone())
	}
}
