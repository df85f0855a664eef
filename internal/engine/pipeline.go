package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aegisops/aegis/internal/models"
	"github.com/aegisops/aegis/internal/scoring"
	"github.com/aegisops/aegis/internal/utils"
)

// EventStore persists ingested events for later aggregation.
type EventStore interface {
	Store(ctx context.Context, events []models.Event) error
}

// Pipeline evaluates batches of events. Independent events are evaluated
// concurrently; each event is evaluated sequentially end to end.
type Pipeline struct {
	logger      *slog.Logger
	events      EventStore
	scorer      scoring.Scorer
	engine      *DecisionEngine
	concurrency int
	latencies   *utils.LatencyTracker
}

// NewPipeline constructs an evaluation pipeline.
func NewPipeline(logger *slog.Logger, store EventStore, scorer scoring.Scorer, engine *DecisionEngine, concurrency int) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Pipeline{
		logger:      logger,
		events:      store,
		scorer:      scorer,
		engine:      engine,
		concurrency: concurrency,
		latencies:   utils.NewLatencyTracker(1024),
	}
}

// Process stores the batch and evaluates every event. Results are returned in
// input order; events skipped because ctx was cancelled have a zero Result.
func (p *Pipeline) Process(ctx context.Context, events []models.Event) []Result {
	if len(events) == 0 {
		return nil
	}

	p.store(ctx, events)
	return p.each(ctx, events, p.Evaluate)
}

// EvaluateBatch evaluates every event without storing the batch. Monitor
// alerts go through here so they never enter the window they were derived from.
func (p *Pipeline) EvaluateBatch(ctx context.Context, events []models.Event) []Result {
	if len(events) == 0 {
		return nil
	}
	return p.each(ctx, events, p.Evaluate)
}

// ProcessCritical stores the batch and sends every event down the
// critical-error path.
func (p *Pipeline) ProcessCritical(ctx context.Context, events []models.Event) []Result {
	if len(events) == 0 {
		return nil
	}
	p.store(ctx, events)
	return p.each(ctx, events, p.EvaluateCritical)
}

func (p *Pipeline) store(ctx context.Context, events []models.Event) {
	if p.events == nil {
		return
	}
	if err := p.events.Store(ctx, events); err != nil {
		p.logger.Warn("failed to store events", slog.Int("count", len(events)), slog.Any("error", err))
	}
}

func (p *Pipeline) each(ctx context.Context, events []models.Event, evaluate func(context.Context, models.Event) Result) []Result {
	results := make([]Result, len(events))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i := range events {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = evaluate(ctx, events[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Evaluate scores and evaluates a single event.
func (p *Pipeline) Evaluate(ctx context.Context, event models.Event) Result {
	start := time.Now()
	score := 0.0
	if p.scorer != nil {
		var err error
		score, err = p.scorer.Score(event)
		if err != nil {
			p.logger.Warn("scoring failed", slog.String("event_type", event.Kind), slog.Any("error", err))
		}
	}

	result := p.engine.Evaluate(ctx, event, score)
	p.observe(time.Since(start))
	return result
}

// EvaluateCritical takes the critical-error path: the event is evaluated as
// critical_error with a maximal score, skipping scoring and classification.
func (p *Pipeline) EvaluateCritical(ctx context.Context, event models.Event) Result {
	return p.engine.EvaluateClassified(ctx, models.CategoryCriticalError, event, 1.0)
}

// Engine returns the decision engine behind the pipeline.
func (p *Pipeline) Engine() *DecisionEngine {
	return p.engine
}

func (p *Pipeline) observe(d time.Duration) {
	p.latencies.Observe(d)
	if count := p.latencies.Count(); count >= 100 && count%100 == 0 {
		p.logger.Debug("evaluation latency",
			slog.Duration("p95", p.latencies.Percentile(95)),
			slog.Int("samples", count),
		)
	}
}
