package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/patientipr/portal-auth"
)

// flakyStore fails Persist once when failNext is set
type flakyStore struct {
	auth.SessionStore
	failNext bool
}

func (f *flakyStore) Persist(ctx context.Context, s *auth.Session) error {
	if f.failNext {
		f.failNext = false
		return errors.New("write failed")
	}
	return f.SessionStore.Persist(ctx, s)
}

func TestSessionContext(t *testing.T) {
	ctx := context.Background()

	t.Run("Starts logged out with an empty store", func(t *testing.T) {
		sc, err := auth.NewSessionContext(ctx, auth.NewSessionStore(auth.NewMemoryKeyValue()))
		require.NoError(t, err)

		assert.False(t, sc.IsAuthenticated())
		assert.Nil(t, sc.Current())
		assert.Equal(t, auth.Role(""), sc.Role())
		_, ok := sc.Profile()
		assert.False(t, ok)
	})

	t.Run("Login survives a reload", func(t *testing.T) {
		kv := auth.NewMemoryKeyValue()
		sink := &recordingSink{}

		sc, err := auth.NewSessionContext(ctx, auth.NewSessionStore(kv), auth.WithContextActivitySink(sink))
		require.NoError(t, err)
		require.NoError(t, sc.Login(ctx, adminSession()))

		assert.True(t, sc.IsAuthenticated())
		assert.Equal(t, auth.RoleAdmin, sc.Role())
		profile, ok := sc.Profile()
		require.True(t, ok)
		assert.Equal(t, "admin", profile.Username)
		assert.Equal(t, []auth.ActivityEventType{auth.ActivityLogin}, sink.types())

		reloaded, err := auth.NewSessionContext(ctx, auth.NewSessionStore(kv))
		require.NoError(t, err)
		require.NotNil(t, reloaded.Current())
		assert.Equal(t, adminSession(), *reloaded.Current())
	})

	t.Run("Logout clears the store and is idempotent", func(t *testing.T) {
		kv := auth.NewMemoryKeyValue()
		sink := &recordingSink{}
		sc, err := auth.NewSessionContext(ctx, auth.NewSessionStore(kv), auth.WithContextActivitySink(sink))
		require.NoError(t, err)
		require.NoError(t, sc.Login(ctx, adminSession()))

		require.NoError(t, sc.Logout(ctx))
		require.NoError(t, sc.Logout(ctx))

		assert.False(t, sc.IsAuthenticated())
		_, err = kv.Get(ctx, auth.DefaultSessionKey)
		assert.True(t, auth.IsKeyNotFound(err))
		assert.Equal(t, []auth.ActivityEventType{auth.ActivityLogin, auth.ActivityLogout}, sink.types())
	})

	t.Run("Login rejects incomplete sessions", func(t *testing.T) {
		sc, err := auth.NewSessionContext(ctx, auth.NewSessionStore(auth.NewMemoryKeyValue()))
		require.NoError(t, err)

		err = sc.Login(ctx, auth.Session{Token: "t", Profile: auth.Profile{Username: "u"}})
		assert.Error(t, err)
		assert.False(t, sc.IsAuthenticated())
	})

	t.Run("Failed persist keeps the previous session", func(t *testing.T) {
		store := &flakyStore{SessionStore: auth.NewSessionStore(auth.NewMemoryKeyValue())}
		sc, err := auth.NewSessionContext(ctx, store, auth.WithContextLogger(&captureLogger{}))
		require.NoError(t, err)

		store.failNext = true
		assert.Error(t, sc.Login(ctx, adminSession()))
		assert.Nil(t, sc.Current())

		require.NoError(t, sc.Login(ctx, adminSession()))
		other := adminSession()
		other.Token = "token-other"
		store.failNext = true
		assert.Error(t, sc.Login(ctx, other))
		assert.Equal(t, "token-admin", sc.Current().Token)
	})

	t.Run("Load failures are returned", func(t *testing.T) {
		_, err := auth.NewSessionContext(ctx,
			auth.NewSessionStore(failingKeyValue{err: errors.New("boom")}),
			auth.WithContextLogger(&captureLogger{}),
		)
		assert.Error(t, err)
	})

	t.Run("Observers see every transition until unsubscribed", func(t *testing.T) {
		sc, err := auth.NewSessionContext(ctx, auth.NewSessionStore(auth.NewMemoryKeyValue()))
		require.NoError(t, err)

		var mu sync.Mutex
		var seen []*auth.Session
		unsubscribe := sc.Subscribe(func(s *auth.Session) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, s)
		})

		require.NoError(t, sc.Login(ctx, adminSession()))
		require.NoError(t, sc.Logout(ctx))
		unsubscribe()
		unsubscribe()
		require.NoError(t, sc.Login(ctx, adminSession()))

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, seen, 2)
		assert.Equal(t, "admin", seen[0].Profile.Username)
		assert.Nil(t, seen[1])
	})

	t.Run("Current returns a copy", func(t *testing.T) {
		sc, err := auth.NewSessionContext(ctx, auth.NewSessionStore(auth.NewMemoryKeyValue()))
		require.NoError(t, err)
		require.NoError(t, sc.Login(ctx, adminSession()))

		sc.Current().Role = auth.RoleUser
		assert.Equal(t, auth.RoleAdmin, sc.Role())
	})

	t.Run("Concurrent logins leave one consistent session", func(t *testing.T) {
		kv := auth.NewMemoryKeyValue()
		sc, err := auth.NewSessionContext(ctx, auth.NewSessionStore(kv))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for _, role := range auth.GetAllRoles() {
			wg.Add(1)
			go func(role auth.Role) {
				defer wg.Done()
				_ = sc.Login(ctx, auth.Session{
					Token:   "token-" + string(role),
					Role:    role,
					Profile: auth.Profile{Username: string(role)},
				})
			}(role)
		}
		wg.Wait()

		current := sc.Current()
		require.NotNil(t, current)
		assert.Equal(t, "token-"+string(current.Role), current.Token)

		stored, err := auth.NewSessionStore(kv).Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, current, stored)
	})
}
