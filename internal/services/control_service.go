package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/aegisops/aegis/internal/engine"
	"github.com/aegisops/aegis/internal/healer"
	"github.com/aegisops/aegis/internal/metrics"
	"github.com/aegisops/aegis/internal/models"
	"github.com/aegisops/aegis/internal/monitor"
	"github.com/aegisops/aegis/internal/repo"
	"github.com/aegisops/aegis/internal/scoring"
)

var (
	// ErrStopped is returned for batches submitted after shutdown began.
	ErrStopped = errors.New("control service stopped")
	// ErrBatchTooLarge is returned when a batch exceeds the configured maximum.
	ErrBatchTooLarge = errors.New("batch too large")
	// ErrTelemetryDisabled is returned while telemetry ingestion is switched off.
	ErrTelemetryDisabled = errors.New("telemetry ingestion disabled")
	// ErrManualHealLimited is returned when operator heals exceed their rate.
	ErrManualHealLimited = errors.New("manual heal rate exceeded")
	// ErrUnknownCategory is returned for a category name that does not exist.
	ErrUnknownCategory = errors.New("unknown category")
)

// Options wires the control service.
type Options struct {
	Logger          *slog.Logger
	Pipeline        *engine.Pipeline
	Healer          *healer.Healer
	Scorer          *scoring.Tracked
	Monitor         *monitor.Monitor
	Log             repo.PersistentLog
	MaxBatch        int
	ManualHealRate  float64
	ManualHealBurst int
	Components      []string
}

// Health describes the running service.
type Health struct {
	Status     string        `json:"status"`
	Uptime     time.Duration `json:"uptime"`
	Mode       string        `json:"mode"`
	Paused     bool          `json:"paused"`
	Components []string      `json:"components"`
	Timestamp  time.Time     `json:"timestamp"`
}

// ControlService is the facade over the control loop used by every transport.
// Ingested batches are processed asynchronously on the service lifetime.
type ControlService struct {
	logger   *slog.Logger
	pipeline *engine.Pipeline
	engine   *engine.DecisionEngine
	healer   *healer.Healer
	scorer   *scoring.Tracked
	monitor  *monitor.Monitor
	log      repo.PersistentLog

	maxBatch   int
	components []string
	started    time.Time
	limiter    *rate.Limiter
	telemetry  *atomic.Bool

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewControlService constructs the facade.
func NewControlService(opts Options) (*ControlService, error) {
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("control service: pipeline is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 1000
	}
	if opts.ManualHealRate <= 0 {
		opts.ManualHealRate = 1
	}
	if opts.ManualHealBurst <= 0 {
		opts.ManualHealBurst = 5
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ControlService{
		logger:     opts.Logger,
		pipeline:   opts.Pipeline,
		engine:     opts.Pipeline.Engine(),
		healer:     opts.Healer,
		scorer:     opts.Scorer,
		monitor:    opts.Monitor,
		log:        opts.Log,
		maxBatch:   opts.MaxBatch,
		components: append([]string(nil), opts.Components...),
		started:    time.Now(),
		limiter:    rate.NewLimiter(rate.Limit(opts.ManualHealRate), opts.ManualHealBurst),
		telemetry:  atomic.NewBool(true),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start launches the monitor loop, if one is configured.
func (s *ControlService) Start(ctx context.Context) error {
	if s.monitor == nil {
		return nil
	}
	return s.monitor.Start(ctx)
}

// Stop rejects new batches, stops the monitor and waits for in-flight batches
// until ctx expires; remaining work is then cancelled.
func (s *ControlService) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	if s.monitor != nil {
		s.monitor.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	defer s.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return fmt.Errorf("drain in-flight batches: %w", ctx.Err())
	}
}

// dispatch runs fn in the background under the service lifetime.
func (s *ControlService) dispatch(name string, fn func(ctx context.Context)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrStopped
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("batch processing panicked", slog.String("batch", name), slog.Any("panic", r))
			}
		}()
		fn(s.ctx)
	}()
	return nil
}

func (s *ControlService) checkBatch(n int) error {
	if n > s.maxBatch {
		return fmt.Errorf("%w: %d events (max %d)", ErrBatchTooLarge, n, s.maxBatch)
	}
	return nil
}

// IngestTelemetry accepts a telemetry batch and schedules its evaluation.
func (s *ControlService) IngestTelemetry(ctx context.Context, events []models.Event) (int, error) {
	if !s.telemetry.Load() {
		return 0, ErrTelemetryDisabled
	}
	if err := s.checkBatch(len(events)); err != nil {
		return 0, err
	}
	batch := normalize(events, models.SourceTelemetry)
	if err := s.dispatch("telemetry", func(ctx context.Context) {
		s.pipeline.Process(ctx, batch)
		s.logger.Info("processed telemetry batch", slog.Int("count", len(batch)))
	}); err != nil {
		return 0, err
	}
	metrics.ObserveIngested(string(models.SourceTelemetry), len(batch))
	s.logger.Info("received telemetry events", slog.Int("count", len(batch)))
	return len(batch), nil
}

// IngestWeb3 accepts chain events. Gas usage above the investigation limit
// raises an alert in addition to the normal evaluation.
func (s *ControlService) IngestWeb3(ctx context.Context, chainEvents []models.Web3Event) (int, error) {
	if err := s.checkBatch(len(chainEvents)); err != nil {
		return 0, err
	}
	events := make([]models.Event, 0, len(chainEvents))
	for _, ce := range chainEvents {
		events = append(events, ce.ToEvent())
	}
	batch := normalize(events, models.SourceWeb3)

	if err := s.dispatch("web3", func(ctx context.Context) {
		for _, e := range batch {
			if gas, ok := engine.ParseGas(e.GasUsed); ok && gas > engine.HighGasUsed {
				s.raiseAlert(ctx, models.Alert{
					Kind:      models.AlertGasUsage,
					Severity:  "warning",
					Message:   fmt.Sprintf("investigate gas usage of %s on %s", e.ID, e.Service),
					Value:     gas,
					Threshold: engine.HighGasUsed,
				})
			}
		}
		s.pipeline.Process(ctx, batch)
		s.logger.Info("processed web3 batch", slog.Int("count", len(batch)))
	}); err != nil {
		return 0, err
	}
	metrics.ObserveIngested(string(models.SourceWeb3), len(batch))
	s.logger.Info("received web3 events", slog.Int("count", len(batch)))
	return len(batch), nil
}

// IngestLogs accepts log lines. Fatal lines go straight to the critical-error
// path and raise an admin alert.
func (s *ControlService) IngestLogs(ctx context.Context, entries []models.LogEntry) (int, error) {
	if err := s.checkBatch(len(entries)); err != nil {
		return 0, err
	}
	var regular, fatal []models.Event
	for _, entry := range entries {
		if entry.IsFatal() {
			fatal = append(fatal, entry.ToEvent())
		} else {
			regular = append(regular, entry.ToEvent())
		}
	}
	regular = normalize(regular, models.SourceLog)
	fatal = normalize(fatal, models.SourceLog)

	if err := s.dispatch("log", func(ctx context.Context) {
		s.pipeline.Process(ctx, regular)
		for _, e := range fatal {
			s.raiseAlert(ctx, models.Alert{
				Kind:      models.AlertCriticalError,
				Severity:  "critical",
				Message:   fmt.Sprintf("fatal error in %s: %s", e.Service, e.Error.Message),
				Value:     1,
				Threshold: 1,
			})
		}
		s.pipeline.ProcessCritical(ctx, fatal)
		s.logger.Info("processed log batch", slog.Int("count", len(regular)+len(fatal)), slog.Int("fatal", len(fatal)))
	}); err != nil {
		return 0, err
	}
	metrics.ObserveIngested(string(models.SourceLog), len(entries))
	if len(fatal) > 0 {
		s.logger.Warn("received fatal log events", slog.Int("count", len(fatal)))
	}
	return len(entries), nil
}

// SubmitSynthetic evaluates monitor alert events synchronously. They are not
// stored as telemetry.
func (s *ControlService) SubmitSynthetic(ctx context.Context, events []models.Event) {
	batch := normalize(events, models.SourceMonitor)
	metrics.ObserveIngested(string(models.SourceMonitor), len(batch))
	s.pipeline.EvaluateBatch(ctx, batch)
}

// Evaluate processes a batch synchronously and returns the results.
func (s *ControlService) Evaluate(ctx context.Context, events []models.Event) ([]engine.Result, error) {
	if err := s.checkBatch(len(events)); err != nil {
		return nil, err
	}
	batch := normalize(events, models.SourceTelemetry)
	metrics.ObserveIngested(string(models.SourceTelemetry), len(batch))
	return s.pipeline.Process(ctx, batch), nil
}

// Heal runs an operator-requested remediation for category. It enters the
// evaluation at the classified state, so the policy gate still applies.
func (s *ControlService) Heal(ctx context.Context, categoryName string, event models.Event) (engine.Result, error) {
	category, ok := models.ParseCategory(categoryName)
	if !ok {
		return engine.Result{}, fmt.Errorf("%w: %q", ErrUnknownCategory, categoryName)
	}
	if !s.limiter.Allow() {
		return engine.Result{}, ErrManualHealLimited
	}
	batch := normalize([]models.Event{event}, models.SourceManual)
	metrics.ObserveIngested(string(models.SourceManual), 1)
	s.logger.Info("manual heal requested", slog.String("category", string(category)))
	return s.engine.EvaluateClassified(ctx, category, batch[0], 1.0), nil
}

func (s *ControlService) raiseAlert(ctx context.Context, alert models.Alert) {
	alert.ID = uuid.NewString()
	alert.Timestamp = time.Now().UTC()
	metrics.ObserveAlert(string(alert.Kind))
	s.logger.Warn("alert raised", slog.String("kind", string(alert.Kind)), slog.String("message", alert.Message))
	if s.log == nil {
		return
	}
	if err := s.log.AppendAlert(ctx, alert); err != nil {
		s.logger.Warn("failed to persist alert", slog.String("alert_id", alert.ID), slog.Any("error", err))
	}
}

// Pause stops remediation while evaluation continues.
func (s *ControlService) Pause() { s.engine.Pause() }

// Resume re-enables remediation.
func (s *ControlService) Resume() { s.engine.Resume() }

// SetMode switches between autonomous and suggest mode.
func (s *ControlService) SetMode(mode string) error { return s.engine.SetMode(mode) }

// SetTriggerThreshold changes the anomaly trigger threshold.
func (s *ControlService) SetTriggerThreshold(v float64) error { return s.engine.SetTriggerThreshold(v) }

// SetTelemetryEnabled switches telemetry ingestion on or off.
func (s *ControlService) SetTelemetryEnabled(enabled bool) {
	s.telemetry.Store(enabled)
	s.logger.Info("telemetry ingestion toggled", slog.Bool("enabled", enabled))
}

// ApproveSuggestion executes a pending suggestion.
func (s *ControlService) ApproveSuggestion(ctx context.Context, id string) (engine.Result, error) {
	return s.engine.ApproveSuggestion(ctx, id)
}

// RejectSuggestion discards a pending suggestion.
func (s *ControlService) RejectSuggestion(id string) error {
	return s.engine.RejectSuggestion(id)
}

// PendingSuggestions lists up to limit pending suggestions, newest first.
func (s *ControlService) PendingSuggestions(limit int) []models.Suggestion {
	pending := s.engine.Suggestions()
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending
}

// RecentDecisions lists up to limit recorded decisions, newest first.
func (s *ControlService) RecentDecisions(limit int) []models.Decision {
	return s.engine.History().Recent(limit)
}

// Stats returns the process-lifetime counters of every component.
func (s *ControlService) Stats() models.Stats {
	stats := models.Stats{Decisions: s.engine.Stats()}
	if s.healer != nil {
		stats.Healer = s.healer.Stats()
	}
	if s.scorer != nil {
		stats.Scorer = s.scorer.Stats()
	}
	if s.monitor != nil {
		stats.Monitor = s.monitor.Stats()
	}
	return stats
}

// Health reports liveness details.
func (s *ControlService) Health() Health {
	s.mu.RLock()
	status := "healthy"
	if s.stopped {
		status = "stopping"
	}
	s.mu.RUnlock()

	return Health{
		Status:     status,
		Uptime:     time.Since(s.started),
		Mode:       s.engine.Mode(),
		Paused:     s.engine.Paused(),
		Components: append([]string(nil), s.components...),
		Timestamp:  time.Now().UTC(),
	}
}

// normalize copies events, filling missing identifiers, timestamps and sources.
func normalize(events []models.Event, source models.EventSource) []models.Event {
	now := time.Now().UTC()
	out := make([]models.Event, len(events))
	for i, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		if e.Source == "" {
			e.Source = source
		}
		out[i] = e
	}
	return out
}
