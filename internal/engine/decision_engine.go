package engine

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

// Operating modes.
const (
	ModeAutonomous = "autonomous"
	ModeSuggest    = "suggest"
)

// ErrSuggestionNotFound is returned when approving or rejecting an unknown suggestion.
var ErrSuggestionNotFound = errors.New("suggestion not found")

// Remediator executes the action bound to a triggered decision.
type Remediator interface {
	Heal(ctx context.Context, req models.HealingRequest) models.HealingAttempt
}

// EngineConfig configures the decision engine.
type EngineConfig struct {
	TriggerThreshold float64
	Mode             string
	MaxSuggestions   int
	Now              func() time.Time
}

// Result is the outcome of one evaluation pass.
type Result struct {
	Decision models.Decision        `json:"decision"`
	Attempt  *models.HealingAttempt `json:"attempt,omitempty"`
}

// DecisionEngine drives one anomaly evaluation from score to remediation and
// owns the decision history and its counters.
type DecisionEngine struct {
	logger     *slog.Logger
	classifier *Classifier
	gate       *PolicyGate
	history    *History
	healer     Remediator
	now        func() time.Time

	threshold *atomic.Float64
	mode      *atomic.String
	paused    *atomic.Bool
	decisions *atomic.Int64
	triggered *atomic.Int64

	sugMu          sync.Mutex
	suggestions    []models.Suggestion
	maxSuggestions int
}

// NewDecisionEngine wires the evaluation components together.
func NewDecisionEngine(logger *slog.Logger, classifier *Classifier, gate *PolicyGate, history *History, healer Remediator, cfg EngineConfig) *DecisionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = NewClassifier()
	}
	if gate == nil {
		gate = NewPolicyGate(DefaultPolicyConfig())
	}
	if history == nil {
		history = NewHistory(DefaultHistoryCapacity)
	}
	if cfg.TriggerThreshold <= 0 || cfg.TriggerThreshold > 1 {
		cfg.TriggerThreshold = models.DefaultAnomalyThreshold
	}
	if cfg.Mode != ModeSuggest {
		cfg.Mode = ModeAutonomous
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 100
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &DecisionEngine{
		logger:         logger,
		classifier:     classifier,
		gate:           gate,
		history:        history,
		healer:         healer,
		now:            cfg.Now,
		threshold:      atomic.NewFloat64(cfg.TriggerThreshold),
		mode:           atomic.NewString(cfg.Mode),
		paused:         atomic.NewBool(false),
		decisions:      atomic.NewInt64(0),
		triggered:      atomic.NewInt64(0),
		maxSuggestions: cfg.MaxSuggestions,
	}
}

// Evaluate runs a scored event through the threshold, classifier, gate and
// healer. Scores at or below the trigger threshold end suppressed and are not
// stored in the history.
func (e *DecisionEngine) Evaluate(ctx context.Context, event models.Event, score float64) Result {
	threshold := e.threshold.Load()
	if score <= threshold {
		metrics.ObserveDecision("unclassified", string(models.OutcomeSuppressed))
		e.logger.Debug("score below trigger threshold",
			slog.String("event_type", event.Kind),
			slog.Float64("score", score),
			slog.Float64("threshold", threshold),
		)
		return Result{Decision: models.Decision{
			ID:        uuid.NewString(),
			Score:     score,
			Outcome:   models.OutcomeSuppressed,
			Timestamp: e.now(),
		}}
	}

	category := e.classifier.Classify(event, score)
	return e.EvaluateClassified(ctx, category, event, score)
}

// EvaluateClassified enters the evaluation at the classified state, bypassing
// scoring and classification.
func (e *DecisionEngine) EvaluateClassified(ctx context.Context, category models.Category, event models.Event, score float64) Result {
	action, mapped := models.ActionFor(category)
	var verdict Verdict

	decision := e.history.Record(func(view HistoryView) models.Decision {
		now := e.now()
		decision := models.Decision{
			ID:        uuid.NewString(),
			Category:  category,
			Score:     score,
			Timestamp: now,
		}

		verdict = e.gate.Evaluate(category, view, now)
		switch {
		case !verdict.Allow:
			decision.Outcome = verdict.Outcome
		case !mapped:
			decision.Outcome = models.OutcomeNoAction
		case e.paused.Load():
			decision.Outcome = models.OutcomePaused
		case e.mode.Load() == ModeSuggest:
			decision.Outcome = models.OutcomeSuggested
		default:
			decision.Outcome = models.OutcomeTriggered
			decision.HealingTriggered = true
		}
		return decision
	})

	e.decisions.Inc()
	metrics.ObserveDecision(string(category), string(decision.Outcome))

	attrs := []any{
		slog.String("decision_id", decision.ID),
		slog.String("category", string(category)),
		slog.Float64("score", score),
		slog.String("outcome", string(decision.Outcome)),
	}

	switch decision.Outcome {
	case models.OutcomeTriggered:
		e.triggered.Inc()
		e.logger.Info("healing triggered", append(attrs, slog.String("action", string(action)))...)
		attempt := e.heal(ctx, models.HealingRequest{
			DecisionID: decision.ID,
			Category:   category,
			Action:     action,
			Event:      event,
		})
		return Result{Decision: decision, Attempt: attempt}
	case models.OutcomeSuggested:
		e.addSuggestion(models.Suggestion{
			ID:         uuid.NewString(),
			DecisionID: decision.ID,
			Category:   category,
			Action:     action,
			Score:      score,
			Event:      event,
			CreatedAt:  decision.Timestamp,
		})
		e.logger.Info("healing suggested", append(attrs, slog.String("action", string(action)))...)
	case models.OutcomeNoAction:
		e.logger.Warn("no remediation action registered", attrs...)
	default:
		e.logger.Warn("healing gated", append(attrs, slog.String("rule", verdict.Rule))...)
	}

	return Result{Decision: decision}
}

func (e *DecisionEngine) heal(ctx context.Context, req models.HealingRequest) *models.HealingAttempt {
	if e.healer == nil {
		e.logger.Warn("no healer configured", slog.String("action", string(req.Action)))
		return nil
	}
	attempt := e.healer.Heal(ctx, req)
	return &attempt
}

// ApproveSuggestion executes a pending suggestion and records a triggered decision for it.
func (e *DecisionEngine) ApproveSuggestion(ctx context.Context, id string) (Result, error) {
	suggestion, ok := e.takeSuggestion(id)
	if !ok {
		return Result{}, fmt.Errorf("approve %s: %w", id, ErrSuggestionNotFound)
	}

	decision := models.Decision{
		ID:               uuid.NewString(),
		Category:         suggestion.Category,
		Score:            suggestion.Score,
		HealingTriggered: true,
		Outcome:          models.OutcomeTriggered,
		Timestamp:        e.now(),
	}
	e.history.Append(decision)
	e.decisions.Inc()
	e.triggered.Inc()
	metrics.ObserveDecision(string(decision.Category), string(decision.Outcome))
	e.logger.Info("suggestion approved",
		slog.String("suggestion_id", id),
		slog.String("decision_id", decision.ID),
		slog.String("action", string(suggestion.Action)),
	)

	attempt := e.heal(ctx, models.HealingRequest{
		DecisionID: decision.ID,
		Category:   suggestion.Category,
		Action:     suggestion.Action,
		Event:      suggestion.Event,
	})
	return Result{Decision: decision, Attempt: attempt}, nil
}

// RejectSuggestion discards a pending suggestion.
func (e *DecisionEngine) RejectSuggestion(id string) error {
	if _, ok := e.takeSuggestion(id); !ok {
		return fmt.Errorf("reject %s: %w", id, ErrSuggestionNotFound)
	}
	e.logger.Info("suggestion rejected", slog.String("suggestion_id", id))
	return nil
}

// Suggestions lists pending suggestions, newest first.
func (e *DecisionEngine) Suggestions() []models.Suggestion {
	e.sugMu.Lock()
	defer e.sugMu.Unlock()

	out := make([]models.Suggestion, 0, len(e.suggestions))
	for i := len(e.suggestions) - 1; i >= 0; i-- {
		out = append(out, e.suggestions[i])
	}
	return out
}

func (e *DecisionEngine) addSuggestion(s models.Suggestion) {
	e.sugMu.Lock()
	defer e.sugMu.Unlock()

	if len(e.suggestions) >= e.maxSuggestions {
		dropped := len(e.suggestions) - e.maxSuggestions + 1
		e.suggestions = append(e.suggestions[:0], e.suggestions[dropped:]...)
	}
	e.suggestions = append(e.suggestions, s)
}

func (e *DecisionEngine) takeSuggestion(id string) (models.Suggestion, bool) {
	e.sugMu.Lock()
	defer e.sugMu.Unlock()

	for i, s := range e.suggestions {
		if s.ID == id {
			e.suggestions = append(e.suggestions[:i], e.suggestions[i+1:]...)
			return s, true
		}
	}
	return models.Suggestion{}, false
}

// Pause stops remediation; anomalies are still evaluated and recorded.
func (e *DecisionEngine) Pause() {
	e.paused.Store(true)
	e.logger.Info("remediation paused")
}

// Resume re-enables remediation.
func (e *DecisionEngine) Resume() {
	e.paused.Store(false)
	e.logger.Info("remediation resumed")
}

// Paused reports whether remediation is paused.
func (e *DecisionEngine) Paused() bool {
	return e.paused.Load()
}

// SetMode switches between autonomous and suggest mode.
func (e *DecisionEngine) SetMode(mode string) error {
	if mode != ModeAutonomous && mode != ModeSuggest {
		return fmt.Errorf("unknown mode %q", mode)
	}
	e.mode.Store(mode)
	e.logger.Info("mode changed", slog.String("mode", mode))
	return nil
}

// Mode returns the current operating mode.
func (e *DecisionEngine) Mode() string {
	return e.mode.Load()
}

// SetTriggerThreshold changes the score an event must exceed to be evaluated.
func (e *DecisionEngine) SetTriggerThreshold(v float64) error {
	if v <= 0 || v > 1 {
		return fmt.Errorf("trigger threshold must be in (0,1], got %v", v)
	}
	e.threshold.Store(v)
	e.logger.Info("trigger threshold changed", slog.Float64("threshold", v))
	return nil
}

// TriggerThreshold returns the current trigger threshold.
func (e *DecisionEngine) TriggerThreshold() float64 {
	return e.threshold.Load()
}

// History exposes the decision history for read access.
func (e *DecisionEngine) History() *History {
	return e.history
}

// Stats returns the engine counters.
func (e *DecisionEngine) Stats() models.DecisionStats {
	return models.DecisionStats{
		DecisionsMade:     e.decisions.Load(),
		HealingsTriggered: e.triggered.Load(),
		RecentDecisions:   e.history.Len(),
		TriggerThreshold:  e.threshold.Load(),
		Mode:              e.mode.Load(),
		Paused:            e.paused.Load(),
	}
}
