package auth

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// RedisKeyValue stores values with plain SET/GET/DEL
type RedisKeyValue struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisKeyValue
type RedisOption func(*RedisKeyValue)

// WithRedisPrefix namespaces every key
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *RedisKeyValue) {
		r.prefix = prefix
	}
}

// WithRedisTTL expires keys after ttl. Zero keeps them forever.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *RedisKeyValue) {
		r.ttl = ttl
	}
}

// NewRedisKeyValue wraps a redis client
func NewRedisKeyValue(client redis.UniversalClient, opts ...RedisOption) *RedisKeyValue {
	r := &RedisKeyValue{client: client}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConnectRedis opens a client and pings it
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "failed to connect to redis").
			WithTextCode(TextCodeTransport)
	}

	return client, nil
}

func (r *RedisKeyValue) key(k string) string {
	return r.prefix + k
}

func (r *RedisKeyValue) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *RedisKeyValue) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

func (r *RedisKeyValue) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
