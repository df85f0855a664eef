package cache

import (
	"context"
	"errors"
	"time"
)

// Provider defines the cache and rate-limit operations remediation actions need.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

var (
	// ErrCacheMiss signals that a cache key was not found.
	ErrCacheMiss = errors.New("cache miss")
	// ErrUnavailable signals that no cache backend is configured.
	ErrUnavailable = errors.New("cache unavailable")
)

// NoopProvider stands in when no cache is configured. Writes fail with
// ErrUnavailable so actions that depend on the cache report failure.
type NoopProvider struct{}

// Get always returns ErrCacheMiss.
func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// Set reports ErrUnavailable.
func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return ErrUnavailable
}

// SetNX reports ErrUnavailable.
func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, ErrUnavailable
}

// Del is a no-op for the noop cache.
func (NoopProvider) Del(context.Context, string) error { return nil }

// Close is a no-op.
func (NoopProvider) Close() error { return nil }
