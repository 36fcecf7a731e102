package cache

import (
	"context"
	"time"
)

// Provider defines the cache operations the monitor needs: publishing
// health snapshots and claiming alert cooldown slots.
type Provider interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Close() error
}

// NoopProvider implements Provider but never stores data. Used when no
// cache is configured.
type NoopProvider struct{}

// Set discards the value and returns nil.
func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// SetNX pretends to store the value and reports success.
func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

// Close is a no-op.
func (NoopProvider) Close() error { return nil }
