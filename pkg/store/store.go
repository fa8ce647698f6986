// Package store provides the shared key-value store client used by
// session authentication and the distributed rate limiter. The contract
// is intentionally narrow: key existence checks and atomic server-side
// script evaluation. Everything else about the store is an external
// concern.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"myinfra-hq/smartgate/pkg/config"
)

// Store is the key-value store contract the gateway depends on.
type Store interface {
	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Eval runs the given server-side script atomically with the provided
	// keys and arguments and returns its raw result.
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// Redis is the production Store backed by a Redis client. Scripts are
// compiled to SHA handles on first use and cached for the lifetime of the
// client, so steady-state evaluation is a single EVALSHA round trip.
type Redis struct {
	client  *redis.Client
	scripts sync.Map // script source -> *redis.Script
}

// NewRedis creates a Redis store from the configuration.
func NewRedis(cfg *config.StoreConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	return &Redis{client: client}
}

// Exists reports whether the key is present.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("store exists %q: %w", key, err)
	}
	return n > 0, nil
}

// Eval runs the script via EVALSHA, falling back to EVAL transparently
// when the script is not yet loaded on the server.
func (r *Redis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	v, _ := r.scripts.LoadOrStore(script, redis.NewScript(script))
	res, err := v.(*redis.Script).Run(ctx, r.client, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("store eval: %w", err)
	}
	return res, nil
}

// Ping verifies connectivity to the store.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
