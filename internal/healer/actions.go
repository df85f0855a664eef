package healer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aegisops/aegis/internal/cache"
	"github.com/aegisops/aegis/internal/models"
)

// Reconnector re-establishes a database connection pool.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// Dependencies are the collaborators remediation actions talk to.
type Dependencies struct {
	Logger         *slog.Logger
	Cache          cache.Provider
	Database       Reconnector
	SimulateDelays bool
	ThrottleTTL    time.Duration
	WarmCacheTTL   time.Duration
}

// Simulated durations for actions without a real backend.
var simulatedDelays = map[models.ActionID]time.Duration{
	models.ActionRestartService:      time.Second,
	models.ActionScaleUp:             time.Second,
	models.ActionRestartProcess:      time.Second,
	models.ActionOptimizeTransaction: 500 * time.Millisecond,
	models.ActionRefreshTokens:       500 * time.Millisecond,
	models.ActionResyncBlockchain:    2 * time.Second,
}

// DefaultExecutors returns an executor for every action.
func DefaultExecutors(deps Dependencies) map[models.ActionID]Executor {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.ThrottleTTL <= 0 {
		deps.ThrottleTTL = time.Minute
	}
	if deps.WarmCacheTTL <= 0 {
		deps.WarmCacheTTL = 10 * time.Minute
	}

	executors := make(map[models.ActionID]Executor, len(models.Actions()))
	for action, delay := range simulatedDelays {
		executors[action] = simulated(deps, action, delay)
	}
	executors[models.ActionReconnectDatabase] = reconnectDatabase(deps)
	executors[models.ActionWarmCache] = warmCache(deps)
	executors[models.ActionThrottleRequests] = throttleRequests(deps)
	return executors
}

func simulated(deps Dependencies, action models.ActionID, delay time.Duration) Executor {
	return ExecutorFunc(func(ctx context.Context, req models.HealingRequest) error {
		deps.Logger.Info("executing remediation",
			slog.String("action", string(action)),
			slog.String("service", req.Event.Service),
		)
		if !deps.SimulateDelays {
			return nil
		}
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	})
}

func reconnectDatabase(deps Dependencies) Executor {
	return ExecutorFunc(func(ctx context.Context, _ models.HealingRequest) error {
		if deps.Database == nil {
			return errors.New("database collaborator unavailable")
		}
		if err := deps.Database.Reconnect(ctx); err != nil {
			return fmt.Errorf("reconnect database: %w", err)
		}
		return nil
	})
}

// warmCache fills the keys listed in the event's "keys" metadata that are not
// already cached.
func warmCache(deps Dependencies) Executor {
	return ExecutorFunc(func(ctx context.Context, req models.HealingRequest) error {
		if deps.Cache == nil {
			return cache.ErrUnavailable
		}
		keys := req.Event.MetadataStrings("keys")
		if len(keys) == 0 {
			keys = []string{"cache:warm:" + firstNonEmpty(req.Event.Service, req.Event.Kind, "default")}
		}

		warmed := 0
		for _, key := range keys {
			if _, err := deps.Cache.Get(ctx, key); err == nil {
				continue
			} else if !errors.Is(err, cache.ErrCacheMiss) {
				return fmt.Errorf("warm cache get %s: %w", key, err)
			}
			if err := deps.Cache.Set(ctx, key, []byte("warm"), deps.WarmCacheTTL); err != nil {
				return fmt.Errorf("warm cache set %s: %w", key, err)
			}
			warmed++
		}
		deps.Logger.Info("cache warmed", slog.Int("keys", warmed))
		return nil
	})
}

// throttleRequests writes a rate-limit marker for the offending user.
func throttleRequests(deps Dependencies) Executor {
	return ExecutorFunc(func(ctx context.Context, req models.HealingRequest) error {
		if deps.Cache == nil {
			return cache.ErrUnavailable
		}
		subject := firstNonEmpty(req.Event.UserID, req.Event.SessionID, req.Event.Service, "global")
		key := "ratelimit:" + subject
		if err := deps.Cache.Set(ctx, key, []byte("throttled"), deps.ThrottleTTL); err != nil {
			return fmt.Errorf("throttle %s: %w", subject, err)
		}
		deps.Logger.Info("requests throttled", slog.String("key", key), slog.Duration("ttl", deps.ThrottleTTL))
		return nil
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
