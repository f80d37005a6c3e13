package auth_test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/patientipr/portal-auth"
)

func TestMain(m *testing.M) {
	auth.PasswordHashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Info(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Warn(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Error(msg string, args ...any) {
	m.Called(msg, args)
}

type logCall struct {
	level   string
	message string
	args    []any
}

// captureLogger records every call
type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }

func (l *captureLogger) has(level, fragment string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.calls {
		if c.level == level && strings.Contains(c.message, fragment) {
			return true
		}
	}
	return false
}

// MockCredentialVerifier implements auth.CredentialVerifier
type MockCredentialVerifier struct {
	mock.Mock
}

func (m *MockCredentialVerifier) Verify(ctx context.Context, identifier, secret string) (*auth.Session, error) {
	args := m.Called(ctx, identifier, secret)
	if s := args.Get(0); s != nil {
		return s.(*auth.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAccountRegistrar implements auth.AccountRegistrar
type MockAccountRegistrar struct {
	mock.Mock
}

func (m *MockAccountRegistrar) Register(ctx context.Context, req auth.SignupRequest) (*auth.Profile, error) {
	args := m.Called(ctx, req)
	if p := args.Get(0); p != nil {
		return p.(*auth.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPasswordResetter implements auth.PasswordResetter
type MockPasswordResetter struct {
	mock.Mock
}

func (m *MockPasswordResetter) RequestPasswordReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockPasswordResetter) ResetPassword(ctx context.Context, token, newSecret string) error {
	args := m.Called(ctx, token, newSecret)
	return args.Error(0)
}

// failingKeyValue fails every call with err
type failingKeyValue struct {
	err error
}

func (f failingKeyValue) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingKeyValue) Set(context.Context, string, []byte) error   { return f.err }
func (f failingKeyValue) Delete(context.Context, string) error        { return f.err }

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type testConfig struct {
	timeout         time.Duration
	rejectedDefault string
}

func (c testConfig) GetSigningKey() string           { return "test-signing-key" }
func (c testConfig) GetTokenExpiration() int         { return 1 }
func (c testConfig) GetIssuer() string               { return "test-issuer" }
func (c testConfig) GetAudience() []string           { return []string{"test-audience"} }
func (c testConfig) GetContextKey() string           { return "test_session" }
func (c testConfig) GetRejectedRouteKey() string     { return "test_redirect" }
func (c testConfig) GetRejectedRouteDefault() string {
	if c.rejectedDefault != "" {
		return c.rejectedDefault
	}
	return "/"
}
func (c testConfig) GetSessionKey() string           { return auth.DefaultSessionKey }
func (c testConfig) GetResetTokenTTL() time.Duration { return auth.DefaultResetTokenTTL }
func (c testConfig) GetRequestTimeout() time.Duration {
	if c.timeout > 0 {
		return c.timeout
	}
	return time.Second
}

func newTokenService() *auth.TokenServiceImpl {
	cfg := testConfig{}
	return auth.NewTokenServiceFromConfig(cfg, &captureLogger{})
}

func newDemoAccounts(t *testing.T) *auth.MemoryAccounts {
	t.Helper()
	accounts, err := auth.DemoAccounts()
	require.NoError(t, err)
	store, err := auth.NewMemoryAccounts(accounts...)
	require.NoError(t, err)
	return store
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := auth.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = auth.Migrate(context.Background(), db)
	require.NoError(t, err)
	return db
}

func adminSession() auth.Session {
	return auth.Session{
		Token:   "token-admin",
		Role:    auth.RoleAdmin,
		Profile: auth.Profile{Name: "Demo Admin", Username: "admin", Email: "admin@gmail.com"},
	}
}
