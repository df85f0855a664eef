package engine

import (
	"testing"

	"github.com/aegisops/aegis/internal/models"
)

func TestClassifierOrderedRules(t *testing.T) {
	classifier := NewClassifier()

	cases := []struct {
		name  string
		event models.Event
		want  models.Category
	}{
		{
			name: "error wins over slow response",
			event: models.Event{
				Error:       &models.ErrorInfo{Message: "boom"},
				Performance: &models.Performance{ResponseTime: 9000, MemoryUsage: 0.95},
			},
			want: models.CategoryHighErrorRate,
		},
		{
			name:  "slow response wins over memory",
			event: models.Event{Performance: &models.Performance{ResponseTime: 5001, MemoryUsage: 0.95}},
			want:  models.CategorySlowResponse,
		},
		{
			name:  "response time at limit does not match",
			event: models.Event{Performance: &models.Performance{ResponseTime: 5000}},
			want:  models.CategoryGenericAnomaly,
		},
		{
			name:  "memory leak",
			event: models.Event{Performance: &models.Performance{MemoryUsage: 0.91}},
			want:  models.CategoryMemoryLeak,
		},
		{
			name:  "gas cost",
			event: models.Event{Kind: models.KindWeb3Transaction, GasUsed: "1500000"},
			want:  models.CategoryHighGasCost,
		},
		{
			name:  "gas on non web3 event ignored",
			event: models.Event{Kind: "api_call", GasUsed: "1500000"},
			want:  models.CategoryGenericAnomaly,
		},
		{
			name:  "malformed gas falls through",
			event: models.Event{Kind: models.KindWeb3Transaction, GasUsed: "0xZZ"},
			want:  models.CategoryGenericAnomaly,
		},
		{
			name:  "nan gas falls through",
			event: models.Event{Kind: models.KindWeb3Transaction, GasUsed: "NaN"},
			want:  models.CategoryGenericAnomaly,
		},
		{
			name:  "empty event",
			event: models.Event{},
			want:  models.CategoryGenericAnomaly,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifier.Classify(tc.event, 0.9); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestClassifierIsDeterministic(t *testing.T) {
	classifier := NewClassifier()
	event := models.Event{Kind: models.KindWeb3Transaction, GasUsed: "2000000", Performance: &models.Performance{MemoryUsage: 0.5}}

	first := classifier.Classify(event, 0.95)
	for i := 0; i < 50; i++ {
		if got := classifier.Classify(event, 0.95); got != first {
			t.Fatalf("iteration %d: expected %s, got %s", i, first, got)
		}
	}
}

func TestClassifierPanickingRuleDoesNotMatch(t *testing.T) {
	rules := append([]Rule{{
		Name:     "broken",
		Category: models.CategoryCacheMiss,
		Match: func(e models.Event, _ float64) bool {
			return e.Metadata["hits"].(int) == 0
		},
	}}, DefaultRules()...)
	classifier := NewClassifierWithRules(rules, "")

	got := classifier.Classify(models.Event{Performance: &models.Performance{ResponseTime: 7000}}, 0.9)
	if got != models.CategorySlowResponse {
		t.Fatalf("expected fallthrough to slow_response, got %s", got)
	}
}
