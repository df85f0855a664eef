package healer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/aegisops/aegis/internal/metrics"
	"github.com/aegisops/aegis/internal/models"
	"github.com/aegisops/aegis/internal/utils"
)

var (
	// ErrNoExecutor is reported when an action has no registered executor.
	ErrNoExecutor = errors.New("no executor registered")
	// ErrActionTimeout is reported when an action exceeds its time budget.
	ErrActionTimeout = errors.New("action timed out")
)

// AttemptLog persists healing attempts.
type AttemptLog interface {
	AppendAttempt(ctx context.Context, attempt models.HealingAttempt) error
}

// Config bounds action execution.
type Config struct {
	ActionTimeout    time.Duration
	MaxConcurrent    int
	LogAppendTimeout time.Duration
}

// Healer executes remediation actions with a per-action timeout and a cap on
// concurrently running actions, and keeps outcome counters.
type Healer struct {
	logger   *slog.Logger
	registry *Registry
	log      AttemptLog
	cfg      Config
	sem      *semaphore.Weighted
	now      func() time.Time

	total     *atomic.Int64
	succeeded *atomic.Int64
	failed    *atomic.Int64

	mu       sync.Mutex
	byAction map[models.ActionID]*atomic.Int64

	latencies *utils.LatencyTracker
}

// New constructs a healer over a validated registry.
func New(logger *slog.Logger, registry *Registry, log AttemptLog, cfg Config) *Healer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 10 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.LogAppendTimeout <= 0 {
		cfg.LogAppendTimeout = 2 * time.Second
	}
	return &Healer{
		logger:    logger,
		registry:  registry,
		log:       log,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		now:       time.Now,
		total:     atomic.NewInt64(0),
		succeeded: atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
		byAction:  make(map[models.ActionID]*atomic.Int64),
		latencies: utils.NewLatencyTracker(512),
	}
}

// Heal runs the requested action and returns the attempt record. Failures of
// any kind are reported in the attempt, never as a panic or error.
func (h *Healer) Heal(ctx context.Context, req models.HealingRequest) models.HealingAttempt {
	attempt := models.HealingAttempt{
		ID:         uuid.NewString(),
		DecisionID: req.DecisionID,
		Category:   req.Category,
		Action:     req.Action,
		Timestamp:  h.now(),
	}

	executor, ok := h.registry.Lookup(req.Action)
	if !ok {
		attempt.Error = fmt.Errorf("%s: %w", req.Action, ErrNoExecutor).Error()
		h.logger.Warn("failed to trigger healing",
			slog.String("category", string(req.Category)),
			slog.String("action", string(req.Action)),
			slog.String("error", attempt.Error),
		)
		h.persist(ctx, attempt)
		return attempt
	}

	start := time.Now()
	err := h.run(ctx, executor, req)
	attempt.Duration = time.Since(start)
	attempt.Success = err == nil
	if err != nil {
		attempt.Error = err.Error()
	}

	h.record(req.Action, attempt.Success, attempt.Duration)
	if attempt.Success {
		h.logger.Info("healing succeeded",
			slog.String("action", string(req.Action)),
			slog.Duration("duration", attempt.Duration),
		)
	} else {
		h.logger.Error("healing failed",
			slog.String("action", string(req.Action)),
			slog.Duration("duration", attempt.Duration),
			slog.Any("error", err),
		)
	}

	h.persist(ctx, attempt)
	return attempt
}

// run executes one action within the timeout. A hung executor keeps its
// semaphore slot until it returns but never blocks the caller past the timeout.
func (h *Healer) run(ctx context.Context, executor Executor, req models.HealingRequest) error {
	actionCtx, cancel := context.WithTimeout(ctx, h.cfg.ActionTimeout)
	defer cancel()

	if err := h.sem.Acquire(actionCtx, 1); err != nil {
		return fmt.Errorf("wait for execution slot: %w", timeoutOr(err))
	}

	done := make(chan error, 1)
	go func() {
		defer h.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("action panic: %v", r)
			}
		}()
		done <- executor.Execute(actionCtx, req)
	}()

	select {
	case err := <-done:
		if err != nil && actionCtx.Err() != nil {
			return timeoutOr(err)
		}
		return err
	case <-actionCtx.Done():
		return timeoutOr(actionCtx.Err())
	}
}

func timeoutOr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrActionTimeout
	}
	return err
}

func (h *Healer) record(action models.ActionID, success bool, duration time.Duration) {
	h.total.Inc()
	if success {
		h.succeeded.Inc()
	} else {
		h.failed.Inc()
	}
	h.counter(action).Inc()
	h.latencies.Observe(duration)
	metrics.ObserveHealing(string(action), duration, success)
}

func (h *Healer) counter(action models.ActionID) *atomic.Int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.byAction[action]
	if !ok {
		c = atomic.NewInt64(0)
		h.byAction[action] = c
	}
	return c
}

// persist appends the attempt to the log, bounded by its own timeout so a
// cancelled request still gets recorded.
func (h *Healer) persist(ctx context.Context, attempt models.HealingAttempt) {
	if h.log == nil {
		return
	}
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.LogAppendTimeout)
	defer cancel()
	if err := h.log.AppendAttempt(logCtx, attempt); err != nil {
		h.logger.Warn("failed to persist healing attempt", slog.String("attempt_id", attempt.ID), slog.Any("error", err))
	}
}

// Stats returns the outcome counters.
func (h *Healer) Stats() models.HealerStats {
	stats := models.HealerStats{
		TotalHealings:      h.total.Load(),
		SuccessfulHealings: h.succeeded.Load(),
		FailedHealings:     h.failed.Load(),
		ByActionType:       make(map[models.ActionID]int64),
	}
	if stats.TotalHealings > 0 {
		stats.SuccessRate = float64(stats.SuccessfulHealings) / float64(stats.TotalHealings)
	}

	h.mu.Lock()
	for action, c := range h.byAction {
		stats.ByActionType[action] = c.Load()
	}
	h.mu.Unlock()
	return stats
}

// P95 returns the 95th percentile action duration.
func (h *Healer) P95() time.Duration {
	return h.latencies.Percentile(95)
}
