package engine

import (
	"math"
	"strconv"
	"strings"

	"github.com/aegisops/aegis/internal/models"
)

// Classification thresholds.
const (
	SlowResponseMs     = 5000.0
	MemoryLeakFraction = 0.9
	HighGasUsed        = 1_000_000.0
)

// Rule maps a matching event to a category.
type Rule struct {
	Name     string
	Category models.Category
	Match    func(event models.Event, score float64) bool
}

// Classifier assigns exactly one category per event using ordered rules; the
// first matching rule wins.
type Classifier struct {
	rules    []Rule
	fallback models.Category
}

// NewClassifier returns the default rule set.
func NewClassifier() *Classifier {
	return NewClassifierWithRules(DefaultRules(), models.CategoryGenericAnomaly)
}

// NewClassifierWithRules builds a classifier over a custom ordered rule list.
func NewClassifierWithRules(rules []Rule, fallback models.Category) *Classifier {
	if fallback == "" {
		fallback = models.CategoryGenericAnomaly
	}
	return &Classifier{rules: append([]Rule(nil), rules...), fallback: fallback}
}

// DefaultRules returns the built-in ordered rules.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "error",
			Category: models.CategoryHighErrorRate,
			Match: func(e models.Event, _ float64) bool {
				return e.HasError()
			},
		},
		{
			Name:     "response_time",
			Category: models.CategorySlowResponse,
			Match: func(e models.Event, _ float64) bool {
				return e.Performance != nil && e.Performance.ResponseTime > SlowResponseMs
			},
		},
		{
			Name:     "memory_usage",
			Category: models.CategoryMemoryLeak,
			Match: func(e models.Event, _ float64) bool {
				return e.Performance != nil && e.Performance.MemoryUsage > MemoryLeakFraction
			},
		},
		{
			Name:     "gas_used",
			Category: models.CategoryHighGasCost,
			Match: func(e models.Event, _ float64) bool {
				if e.Kind != models.KindWeb3Transaction {
					return false
				}
				gas, ok := ParseGas(e.GasUsed)
				return ok && gas > HighGasUsed
			},
		},
	}
}

// Classify returns the category of the first matching rule, or the fallback.
func (c *Classifier) Classify(event models.Event, score float64) models.Category {
	for _, rule := range c.rules {
		if matches(rule, event, score) {
			return rule.Category
		}
	}
	return c.fallback
}

// matches treats a panicking rule as not matched.
func matches(rule Rule, event models.Event, score float64) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return rule.Match != nil && rule.Match(event, score)
}

// ParseGas parses a decimal gas amount; malformed input is reported as not ok.
func ParseGas(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	gas, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(gas) || math.IsInf(gas, 0) {
		return 0, false
	}
	return gas, true
}
