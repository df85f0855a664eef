package scoring

import (
	"fmt"
	"math"

	"go.uber.org/atomic"

	"github.com/aegisops/aegis/internal/metrics"
	"github.com/aegisops/aegis/internal/models"
)

// Scorer produces a normalized anomaly score in [0,1] for an event.
// A non-nil error means the score is 0 and the caller should log the failure.
type Scorer interface {
	Score(event models.Event) (float64, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(event models.Event) (float64, error)

// Score implements Scorer.
func (f ScorerFunc) Score(event models.Event) (float64, error) {
	return f(event)
}

// Tracked wraps a model with prediction bookkeeping. It clamps output to
// [0,1] and turns model panics and invalid output into errors with score 0.
type Tracked struct {
	model       Scorer
	threshold   float64
	predictions *atomic.Int64
	anomalies   *atomic.Int64
}

// NewTracked wraps model; anomalies are counted above models.DefaultAnomalyThreshold.
func NewTracked(model Scorer) *Tracked {
	return &Tracked{
		model:       model,
		threshold:   models.DefaultAnomalyThreshold,
		predictions: atomic.NewInt64(0),
		anomalies:   atomic.NewInt64(0),
	}
}

// Score implements Scorer.
func (t *Tracked) Score(event models.Event) (score float64, err error) {
	t.predictions.Inc()
	defer func() {
		if r := recover(); r != nil {
			score, err = 0, fmt.Errorf("scorer panic: %v", r)
		}
		if err != nil {
			score = 0
		}
		metrics.ObserveScore(score)
		if score > t.threshold {
			t.anomalies.Inc()
		}
	}()

	if t.model == nil {
		return 0, fmt.Errorf("no scoring model configured")
	}
	score, err = t.model.Score(event)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("scorer returned non-finite value %v", score)
	}
	return clamp(score, 0, 1), nil
}

// Stats returns the prediction counters.
func (t *Tracked) Stats() models.ScorerStats {
	return models.ScorerStats{
		Predictions:       t.predictions.Load(),
		AnomaliesDetected: t.anomalies.Load(),
	}
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
