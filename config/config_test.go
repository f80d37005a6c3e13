package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/patientipr/portal-auth"
	"github.com/patientipr/portal-auth/config"
)

var _ auth.Config = (*config.Config)(nil)

func TestLoadWith(t *testing.T) {
	t.Run("Defaults in development", func(t *testing.T) {
		cfg, err := config.LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, ":8080", cfg.Addr())
		assert.Equal(t, 24, cfg.GetTokenExpiration())
		assert.Equal(t, "patientipr_auth", cfg.GetSessionKey())
		assert.Equal(t, 10*time.Second, cfg.GetRequestTimeout())
		assert.Equal(t, 24*time.Hour, cfg.GetResetTokenTTL())
		assert.Equal(t, []string{"patientipr-portal"}, cfg.GetAudience())
		assert.Equal(t, config.StoreSQLite, cfg.Client.SessionStore)
		assert.NotEmpty(t, cfg.GetSigningKey())
	})

	t.Run("Environment overrides", func(t *testing.T) {
		cfg, err := config.LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
			"PORTAL_PORT":            "9090",
			"PORTAL_SIGNING_KEY":     "secret",
			"PORTAL_SESSION_STORE":   "redis",
			"PORTAL_REQUEST_TIMEOUT": "2s",
			"PORTAL_TOKEN_AUDIENCE":  "a,b",
		}))
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Port)
		assert.Equal(t, "secret", cfg.GetSigningKey())
		assert.Equal(t, config.StoreRedis, cfg.Client.SessionStore)
		assert.Equal(t, 2*time.Second, cfg.GetRequestTimeout())
		assert.Equal(t, []string{"a", "b"}, cfg.GetAudience())
	})

	t.Run("Signing key required in production", func(t *testing.T) {
		_, err := config.LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
			"PORTAL_ENV": "production",
		}))
		assert.Error(t, err)
	})

	t.Run("Unknown session store", func(t *testing.T) {
		_, err := config.LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
			"PORTAL_SESSION_STORE": "etcd",
		}))
		assert.Error(t, err)
	})
}
