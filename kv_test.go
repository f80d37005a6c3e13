package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/patientipr/portal-auth"
)

func keyValues(t *testing.T) map[string]auth.KeyValue {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return map[string]auth.KeyValue{
		"memory": auth.NewMemoryKeyValue(),
		"bun":    auth.NewBunKeyValue(newTestDB(t)),
		"redis":  auth.NewRedisKeyValue(rdb, auth.WithRedisPrefix("test:")),
	}
}

func TestKeyValue(t *testing.T) {
	ctx := context.Background()

	for name, kv := range keyValues(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(ctx, "missing")
			assert.True(t, auth.IsKeyNotFound(err))

			require.NoError(t, kv.Set(ctx, "k", []byte("one")))
			require.NoError(t, kv.Set(ctx, "k", []byte("two")))

			v, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("two"), v)

			require.NoError(t, kv.Delete(ctx, "k"))
			_, err = kv.Get(ctx, "k")
			assert.True(t, auth.IsKeyNotFound(err))
		})
	}
}

func TestKeyValue_SessionStore(t *testing.T) {
	ctx := context.Background()

	for name, kv := range keyValues(t) {
		t.Run(name, func(t *testing.T) {
			sc, err := auth.NewSessionContext(ctx, auth.NewSessionStore(kv))
			require.NoError(t, err)
			require.NoError(t, sc.Login(ctx, adminSession()))

			reloaded, err := auth.NewSessionContext(ctx, auth.NewSessionStore(kv))
			require.NoError(t, err)
			assert.Equal(t, auth.RoleAdmin, reloaded.Role())

			require.NoError(t, reloaded.Logout(ctx))

			again, err := auth.NewSessionContext(ctx, auth.NewSessionStore(kv))
			require.NoError(t, err)
			assert.False(t, again.IsAuthenticated())
		})
	}
}

func TestMemoryKeyValue_CopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := auth.NewMemoryKeyValue()

	value := []byte("abc")
	require.NoError(t, kv.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestRedisKeyValue(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	t.Run("Keys are prefixed and expire", func(t *testing.T) {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rdb.Close()

		kv := auth.NewRedisKeyValue(rdb, auth.WithRedisPrefix("portal:"), auth.WithRedisTTL(time.Minute))
		require.NoError(t, kv.Set(ctx, auth.DefaultSessionKey, []byte("{}")))

		assert.True(t, mr.Exists("portal:"+auth.DefaultSessionKey))
		assert.Equal(t, time.Minute, mr.TTL("portal:"+auth.DefaultSessionKey))

		mr.FastForward(2 * time.Minute)
		_, err := kv.Get(ctx, auth.DefaultSessionKey)
		assert.True(t, auth.IsKeyNotFound(err))
	})

	t.Run("Connect pings the server", func(t *testing.T) {
		rdb, err := auth.ConnectRedis(ctx, mr.Addr(), "", 0)
		require.NoError(t, err)
		rdb.Close()

		_, err = auth.ConnectRedis(ctx, "127.0.0.1:1", "", 0)
		assert.True(t, auth.IsTransportError(err))
	})
}
