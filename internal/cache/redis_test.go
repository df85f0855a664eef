package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestNewRedisProviderRequiresAddr(t *testing.T) {
	if _, err := NewRedisProvider(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error without addr")
	}
}

func TestNewRedisProviderFailsFastOnUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisProvider(ctx, RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	if err == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestRedisProviderRoundTrip(t *testing.T) {
	addr := os.Getenv("AEGIS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AEGIS_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	p, err := NewRedisProvider(ctx, RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer p.Close()

	key := "aegis:test:" + time.Now().Format(time.RFC3339Nano)
	if _, err := p.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if err := p.Set(ctx, key, []byte("warm"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	ok, err := p.SetNX(ctx, key, []byte("other"), time.Minute)
	if err != nil || ok {
		t.Fatalf("expected SetNX to lose on existing key, ok=%v err=%v", ok, err)
	}
	if err := p.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
}
