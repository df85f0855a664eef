package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/aegisops/aegis/internal/metrics"
	"github.com/aegisops/aegis/internal/models"
)

// KindSystemAlert is the event type of synthetic alert events.
const KindSystemAlert = "system_alert"

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("monitor already running")

// EventSource provides the events of the aggregation window.
type EventSource interface {
	Recent(ctx context.Context, window time.Duration) ([]models.Event, error)
}

// AlertLog records raised alerts.
type AlertLog interface {
	AppendAlert(ctx context.Context, alert models.Alert) error
}

// Sink receives synthetic alert events for evaluation.
type Sink func(ctx context.Context, events []models.Event)

// Config controls the loop cadence and thresholds.
type Config struct {
	Interval   time.Duration
	Window     time.Duration
	Thresholds Thresholds
}

// Monitor periodically samples aggregate health and feeds threshold breaches
// back into the control loop as synthetic events.
type Monitor struct {
	logger *slog.Logger
	source EventSource
	alerts AlertLog
	sink   Sink
	cfg    Config
	now    func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running *atomic.Bool

	ticks        *atomic.Int64
	failedTicks  *atomic.Int64
	alertsRaised *atomic.Int64
}

// New constructs a monitor; zero config values take defaults.
func New(logger *slog.Logger, source EventSource, alerts AlertLog, sink Sink, cfg Config) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	return &Monitor{
		logger:       logger,
		source:       source,
		alerts:       alerts,
		sink:         sink,
		cfg:          cfg,
		now:          time.Now,
		running:      atomic.NewBool(false),
		ticks:        atomic.NewInt64(0),
		failedTicks:  atomic.NewInt64(0),
		alertsRaised: atomic.NewInt64(0),
	}
}

// Start launches the loop. It runs until ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done != nil {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running.Store(true)

	go m.loop(loopCtx, m.done)
	m.logger.Info("monitor started", slog.Duration("interval", m.cfg.Interval), slog.Duration("window", m.cfg.Window))
	return nil
}

// Stop cancels the loop and blocks until it has exited. It is safe to call
// more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("monitor stopped")
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer m.running.Store(false)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				m.logger.Warn("monitor tick failed", slog.Any("error", err))
			}
		}
	}
}

// Tick runs one sampling pass and returns the alerts it raised.
func (m *Monitor) Tick(ctx context.Context) (alerts []models.Alert, err error) {
	m.ticks.Inc()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("monitor tick panic: %v", r)
		}
		if err != nil {
			m.failedTicks.Inc()
		}
		metrics.ObserveMonitorTick(err == nil)
	}()

	if m.source == nil {
		return nil, errors.New("no telemetry source configured")
	}
	events, err := m.source.Recent(ctx, m.cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("fetch recent events: %w", err)
	}
	agg := Summarize(events)
	m.logger.Debug("monitor sample",
		slog.Int("events", agg.Events),
		slog.Float64("error_rate", agg.ErrorRate),
		slog.Float64("avg_response_ms", agg.AvgResponseTime),
	)

	breaches := m.cfg.Thresholds.Breaches(agg)
	if len(breaches) == 0 {
		return nil, nil
	}

	now := m.now()
	synthetic := make([]models.Event, 0, len(breaches))
	for _, b := range breaches {
		alert := newAlert(b, now)
		alerts = append(alerts, alert)
		m.alertsRaised.Inc()
		metrics.ObserveAlert(string(alert.Kind))
		m.logger.Warn("threshold breached",
			slog.String("kind", string(alert.Kind)),
			slog.Float64("value", b.Value),
			slog.Float64("threshold", b.Threshold),
		)
		if m.alerts != nil {
			if err := m.alerts.AppendAlert(ctx, alert); err != nil {
				m.logger.Warn("failed to persist alert", slog.String("alert_id", alert.ID), slog.Any("error", err))
			}
		}
		synthetic = append(synthetic, AlertEvent(alert))
	}

	if m.sink != nil {
		m.sink(ctx, synthetic)
	}
	return alerts, nil
}

// Stats returns the loop counters.
func (m *Monitor) Stats() models.MonitorStats {
	return models.MonitorStats{
		Running:      m.running.Load(),
		Ticks:        m.ticks.Load(),
		FailedTicks:  m.failedTicks.Load(),
		AlertsRaised: m.alertsRaised.Load(),
	}
}

func newAlert(b Breach, now time.Time) models.Alert {
	severity := "warning"
	if b.Value > 1.5*b.Threshold {
		severity = "critical"
	}
	return models.Alert{
		ID:        uuid.NewString(),
		Kind:      b.Kind,
		Severity:  severity,
		Message:   fmt.Sprintf("%s: %.4g exceeds %.4g", b.Kind, b.Value, b.Threshold),
		Value:     b.Value,
		Threshold: b.Threshold,
		Timestamp: now,
	}
}

// AlertEvent converts an alert into a synthetic event carrying the breaching
// measurement, so the classifier routes it like organic telemetry.
func AlertEvent(alert models.Alert) models.Event {
	event := models.Event{
		ID:          uuid.NewString(),
		Kind:        KindSystemAlert,
		Name:        string(alert.Kind),
		Source:      models.SourceMonitor,
		Performance: &models.Performance{},
		Metadata: map[string]any{
			"alert_id":  alert.ID,
			"severity":  alert.Severity,
			"threshold": alert.Threshold,
		},
		Timestamp: alert.Timestamp,
	}
	switch alert.Kind {
	case models.AlertErrorRate:
		event.Performance.ErrorRate = alert.Value
		event.Error = &models.ErrorInfo{Message: alert.Message, Type: string(alert.Kind)}
	case models.AlertResponseTime:
		event.Performance.ResponseTime = alert.Value
	case models.AlertMemory:
		event.Performance.MemoryUsage = alert.Value
	case models.AlertCPU:
		event.Performance.CPUUsage = alert.Value
	}
	return event
}
