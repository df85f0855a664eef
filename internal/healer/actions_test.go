package healer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisops/aegis/internal/cache"
	"github.com/aegisops/aegis/internal/models"
)

func TestWarmCacheFillsMissingKeys(t *testing.T) {
	store := cache.NewMemoryProvider()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "user:1", []byte("cached"), time.Minute))

	executors := DefaultExecutors(Dependencies{Cache: store, WarmCacheTTL: time.Minute})
	err := executors[models.ActionWarmCache].Execute(ctx, models.HealingRequest{
		Event: models.Event{Metadata: map[string]any{"keys": []any{"user:1", "user:2"}}},
	})
	require.NoError(t, err)

	kept, err := store.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, "cached", string(kept))

	warmed, err := store.Get(ctx, "user:2")
	require.NoError(t, err)
	assert.Equal(t, "warm", string(warmed))
}

func TestCacheActionsFailWithoutCache(t *testing.T) {
	for _, provider := range []cache.Provider{nil, cache.NoopProvider{}} {
		executors := DefaultExecutors(Dependencies{Cache: provider})
		for _, action := range []models.ActionID{models.ActionWarmCache, models.ActionThrottleRequests} {
			err := executors[action].Execute(context.Background(), models.HealingRequest{Event: models.Event{UserID: "u-1"}})
			assert.ErrorIs(t, err, cache.ErrUnavailable, "%s with %T", action, provider)
		}
	}
}

func TestThrottleRequestsWritesUserKey(t *testing.T) {
	store := cache.NewMemoryProvider()
	executors := DefaultExecutors(Dependencies{Cache: store, ThrottleTTL: time.Minute})

	err := executors[models.ActionThrottleRequests].Execute(context.Background(), models.HealingRequest{
		Event: models.Event{UserID: "u-42"},
	})
	require.NoError(t, err)

	value, err := store.Get(context.Background(), "ratelimit:u-42")
	require.NoError(t, err)
	assert.Equal(t, "throttled", string(value))
}

func TestReconnectDatabase(t *testing.T) {
	db := &fakeReconnector{}
	executors := DefaultExecutors(Dependencies{Database: db})
	require.NoError(t, executors[models.ActionReconnectDatabase].Execute(context.Background(), models.HealingRequest{}))
	assert.Equal(t, 1, db.calls)

	db.err = errors.New("connection refused")
	assert.Error(t, executors[models.ActionReconnectDatabase].Execute(context.Background(), models.HealingRequest{}))

	missing := DefaultExecutors(Dependencies{})
	assert.Error(t, missing[models.ActionReconnectDatabase].Execute(context.Background(), models.HealingRequest{}))
}

func TestSimulatedActionHonoursCancellation(t *testing.T) {
	executors := DefaultExecutors(Dependencies{SimulateDelays: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := executors[models.ActionResyncBlockchain].Execute(ctx, models.HealingRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}
