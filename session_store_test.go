package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/patientipr/portal-auth"
)

func TestSessionStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := auth.NewMemoryKeyValue()
	store := auth.NewSessionStore(kv, auth.WithStoreLogger(&captureLogger{}))

	session := adminSession()
	require.NoError(t, store.Persist(ctx, &session))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, session, *loaded)

	require.NoError(t, store.Clear(ctx))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSessionStore_Key(t *testing.T) {
	kv := auth.NewMemoryKeyValue()

	assert.Equal(t, auth.DefaultSessionKey, auth.NewSessionStore(kv).Key())
	assert.Equal(t, "custom", auth.NewSessionStore(kv, auth.WithSessionKey("custom")).Key())
	assert.Equal(t, auth.DefaultSessionKey, auth.NewSessionStore(kv, auth.WithSessionKey("")).Key())
}

func TestSessionStore_PersistRejectsIncompleteSessions(t *testing.T) {
	ctx := context.Background()
	kv := auth.NewMemoryKeyValue()
	store := auth.NewSessionStore(kv)

	err := store.Persist(ctx, &auth.Session{Token: "t"})
	assert.Error(t, err)

	_, err = kv.Get(ctx, auth.DefaultSessionKey)
	assert.True(t, auth.IsKeyNotFound(err))
}

func TestSessionStore_LoadMalformed(t *testing.T) {
	payloads := map[string]string{
		"Not json":           `{not json`,
		"Empty payload":      ``,
		"Json null":          `null`,
		"Null fields":        `{"token":null,"role":null,"profile":null}`,
		"Token without role": `{"token":"t","role":null,"profile":{"name":"A","username":"a"}}`,
		"Role without token": `{"token":null,"role":"admin","profile":{"name":"A","username":"a"}}`,
		"Missing profile":    `{"token":"t","role":"admin"}`,
		"Json array":         `[1,2,3]`,
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := auth.NewMemoryKeyValue()
			logger := &captureLogger{}
			store := auth.NewSessionStore(kv, auth.WithStoreLogger(logger))

			require.NoError(t, kv.Set(ctx, store.Key(), []byte(payload)))

			session, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, session)

			_, err = kv.Get(ctx, store.Key())
			assert.True(t, auth.IsKeyNotFound(err), "malformed record must be purged")
			assert.True(t, logger.has("warn", "discarding stored session"))
		})
	}
}

func TestSessionStore_KeepsUnknownRoles(t *testing.T) {
	ctx := context.Background()
	kv := auth.NewMemoryKeyValue()
	store := auth.NewSessionStore(kv)

	require.NoError(t, kv.Set(ctx, store.Key(), []byte(`{"token":"t","role":"guest","profile":{"name":"G","username":"g"}}`)))

	session, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, auth.Role("guest"), session.Role)
}

func TestSessionStore_BackendFailures(t *testing.T) {
	ctx := context.Background()
	store := auth.NewSessionStore(failingKeyValue{err: errors.New("disk full")})

	session := adminSession()
	err := store.Persist(ctx, &session)
	require.Error(t, err)
	assert.True(t, auth.IsTransportError(err))

	_, err = store.Load(ctx)
	require.Error(t, err)
	assert.True(t, auth.IsTransportError(err))

	err = store.Clear(ctx)
	require.Error(t, err)
	assert.True(t, auth.IsTransportError(err))
}

func TestSessionStore_ClearMissingKey(t *testing.T) {
	store := auth.NewSessionStore(failingKeyValue{err: auth.ErrKeyNotFound})
	assert.NoError(t, store.Clear(context.Background()))
}
