package kv

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Host       string `json:"host" yaml:"host"`
	Port       int    `json:"port" yaml:"port"`
	TLSEnabled bool   `json:"tlsEnabled,omitempty" yaml:"tls_enabled,omitempty"`
	Username   string `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	DB         int    `json:"db,omitempty" yaml:"db,omitempty"`
}

// RedisStore is a Store over a Redis hash per key, with PEXPIRE-based TTL
// refresh.
type RedisStore struct {
	client *redis.Client
}

// SetMapField sets field in the hash at key and refreshes the key TTL.
func (s *RedisStore) SetMapField(ctx context.Context, key, field string, value []byte, ttl time.Duration) error {
	if err := s.client.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("hset %s %s: %w", key, field, err)
	}
	if ttl > 0 {
		if err := s.client.PExpire(ctx, key, ttl).Err(); err != nil {
			return fmt.Errorf("pexpire %s: %w", key, err)
		}
	}
	return nil
}

// GetMap returns the whole hash at key. Expired or missing keys yield an
// empty map.
func (s *RedisStore) GetMap(ctx context.Context, key string) (map[string][]byte, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	out := make(map[string][]byte, len(fields))
	for field, value := range fields {
		out[field] = []byte(value)
	}
	return out, nil
}

// DeleteMapField removes one field from the hash at key.
func (s *RedisStore) DeleteMapField(ctx context.Context, key, field string) error {
	if err := s.client.HDel(ctx, key, field).Err(); err != nil {
		return fmt.Errorf("hdel %s %s: %w", key, field, err)
	}
	return nil
}

// DeleteMap removes the key entirely.
func (s *RedisStore) DeleteMap(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// RedisFactory produces RedisStore handles over one shared client. The
// client pools connections, so handles are cheap.
type RedisFactory struct {
	client *redis.Client
}

// NewRedisFactory connects a Redis client and verifies the connection with
// a ping. A failed ping is logged but not fatal; the backend may come up
// later.
func NewRedisFactory(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisFactory, error) {
	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed", "addr", opts.Addr, "error", err)
	} else {
		logger.Info("redis connected", "addr", opts.Addr)
	}

	return &RedisFactory{client: client}, nil
}

// NewRedisFactoryFromClient wraps an existing client. Used by tests.
func NewRedisFactoryFromClient(client *redis.Client) *RedisFactory {
	return &RedisFactory{client: client}
}

// Open returns a store handle over the shared client.
func (f *RedisFactory) Open(context.Context) (Store, error) {
	return &RedisStore{client: f.client}, nil
}
