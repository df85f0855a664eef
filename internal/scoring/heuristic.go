package scoring

import (
	"math"
	"strconv"
	"strings"

	"github.com/aegisops/aegis/internal/models"
	"github.com/aegisops/aegis/internal/utils"
)

// HeuristicScorer scores events from their performance measurements. Response
// times are additionally compared with a rolling baseline using a z-score,
// once enough samples have been seen.
type HeuristicScorer struct {
	responseTimes *utils.RollingWindow
	minSamples    int
}

// NewHeuristicScorer creates a scorer with a baseline of the given size.
func NewHeuristicScorer(baselineSize int) *HeuristicScorer {
	if baselineSize <= 0 {
		baselineSize = 512
	}
	return &HeuristicScorer{
		responseTimes: utils.NewRollingWindow(baselineSize),
		minSamples:    20,
	}
}

// Score implements Scorer. The result is the strongest single signal.
func (s *HeuristicScorer) Score(event models.Event) (float64, error) {
	score := 0.0
	if event.HasError() {
		score = math.Max(score, 0.95)
	}

	if perf := event.Performance; perf != nil {
		if perf.ResponseTime > 0 {
			score = math.Max(score, logistic((perf.ResponseTime-3000)/800))
			score = math.Max(score, s.baselineScore(perf.ResponseTime))
			s.responseTimes.Observe(perf.ResponseTime)
		}
		if perf.MemoryUsage > 0 {
			score = math.Max(score, logistic((perf.MemoryUsage-0.8)*25))
		}
		if perf.CPUUsage > 0 {
			score = math.Max(score, logistic((perf.CPUUsage-0.8)*25))
		}
		if perf.ErrorRate > 0 {
			score = math.Max(score, logistic((perf.ErrorRate-0.05)*60))
		}
		if perf.TransactionSuccess > 0 && perf.TransactionSuccess < 1 {
			score = math.Max(score, logistic((0.9-perf.TransactionSuccess)*30))
		}
	}

	if strings.TrimSpace(event.GasUsed) != "" {
		if gas, err := strconv.ParseFloat(strings.TrimSpace(event.GasUsed), 64); err == nil {
			score = math.Max(score, logistic((gas-1_000_000)/200_000))
		}
	}

	return score, nil
}

func (s *HeuristicScorer) baselineScore(responseTime float64) float64 {
	if s.responseTimes.Count() < s.minSamples {
		return 0
	}
	mean, std := s.responseTimes.MeanStdDev()
	if std == 0 {
		std = 0.01
	}
	z := (responseTime - mean) / std
	if z <= 0 {
		return 0
	}
	return logistic(z - 3)
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
