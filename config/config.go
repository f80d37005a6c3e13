package config

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Session store backends for the client
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config is the process configuration. It satisfies auth.Config.
type Config struct {
	Port      int    `env:"PORTAL_PORT, default=8080"`
	Env       string `env:"PORTAL_ENV, default=development"`
	LogLevel  string `env:"PORTAL_LOG_LEVEL, default=info"`
	LogPretty bool   `env:"PORTAL_LOG_PRETTY, default=false"`

	SigningKey      string   `env:"PORTAL_SIGNING_KEY"`
	TokenExpiration int      `env:"PORTAL_TOKEN_EXPIRATION_HOURS, default=24"`
	Issuer          string   `env:"PORTAL_TOKEN_ISSUER, default=patientipr"`
	Audience        []string `env:"PORTAL_TOKEN_AUDIENCE, default=patientipr-portal"`

	ContextKey           string `env:"PORTAL_CONTEXT_KEY, default=patientipr_session"`
	RejectedRouteKey     string `env:"PORTAL_REJECTED_ROUTE_KEY, default=patientipr_redirect"`
	RejectedRouteDefault string `env:"PORTAL_REJECTED_ROUTE_DEFAULT, default=/"`
	SecureCookies        bool   `env:"PORTAL_SECURE_COOKIES, default=false"`

	RequestTimeout time.Duration `env:"PORTAL_REQUEST_TIMEOUT, default=10s"`
	ResetTokenTTL  time.Duration `env:"PORTAL_RESET_TOKEN_TTL, default=24h"`

	DatabaseDSN      string `env:"PORTAL_DATABASE_DSN, default=file:portal.db"`
	SeedDemoAccounts bool   `env:"PORTAL_SEED_DEMO_ACCOUNTS, default=true"`

	Client ClientConfig
	Redis  RedisConfig
}

// ClientConfig is used by portalctl
type ClientConfig struct {
	RemoteURL    string `env:"PORTAL_REMOTE_URL, default=http://localhost:8080"`
	SessionKey   string `env:"PORTAL_SESSION_KEY, default=patientipr_auth"`
	SessionStore string `env:"PORTAL_SESSION_STORE, default=sqlite"`
	SessionDSN   string `env:"PORTAL_SESSION_DSN, default=file:portalctl.db"`
}

// RedisConfig is used when the session store is redis
type RedisConfig struct {
	Addr     string `env:"PORTAL_REDIS_ADDR, default=localhost:6379"`
	Password string `env:"PORTAL_REDIS_PASSWORD"`
	DB       int    `env:"PORTAL_REDIS_DB, default=0"`
	Prefix   string `env:"PORTAL_REDIS_PREFIX, default=portal:"`
}

// Load reads an optional .env file and then the environment
func Load(ctx context.Context, envFiles ...string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load(envFiles...)
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from lookuper
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values envconfig cannot
func (c *Config) Validate() error {
	if c.SigningKey == "" {
		if c.Env != "development" && c.Env != "test" {
			return goerrors.New("PORTAL_SIGNING_KEY is required outside development", goerrors.CategoryBadInput)
		}
		c.SigningKey = "patientipr-development-signing-key"
	}

	switch c.Client.SessionStore {
	case StoreSQLite, StoreRedis, StoreMemory:
	default:
		return goerrors.New(fmt.Sprintf("unknown session store %q", c.Client.SessionStore), goerrors.CategoryBadInput)
	}

	if c.RequestTimeout <= 0 {
		return goerrors.New("request timeout must be positive", goerrors.CategoryBadInput)
	}

	return nil
}

// Addr is the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) GetSigningKey() string {
	return c.SigningKey
}

func (c *Config) GetTokenExpiration() int {
	return c.TokenExpiration
}

func (c *Config) GetIssuer() string {
	return c.Issuer
}

func (c *Config) GetAudience() []string {
	return c.Audience
}

func (c *Config) GetContextKey() string {
	return c.ContextKey
}

func (c *Config) GetRejectedRouteKey() string {
	return c.RejectedRouteKey
}

func (c *Config) GetRejectedRouteDefault() string {
	return c.RejectedRouteDefault
}

func (c *Config) GetSessionKey() string {
	return c.Client.SessionKey
}

func (c *Config) GetRequestTimeout() time.Duration {
	return c.RequestTimeout
}

func (c *Config) GetResetTokenTTL() time.Duration {
	return c.ResetTokenTTL
}
