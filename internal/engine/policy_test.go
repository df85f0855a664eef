package engine

import (
	"testing"
	"time"

	"github.com/aegisops/aegis/internal/models"
)

func fullHistory(category models.Category, now time.Time, n int) *History {
	history := NewHistory(DefaultHistoryCapacity)
	for i := 0; i < n; i++ {
		history.Append(models.Decision{Category: category, HealingTriggered: true, Timestamp: now.Add(-time.Duration(i) * time.Second)})
	}
	return history
}

func utcGate() *PolicyGate {
	cfg := DefaultPolicyConfig()
	cfg.Location = time.UTC
	return NewPolicyGate(cfg)
}

func TestPolicyGateCriticalBypassesAllChecks(t *testing.T) {
	gate := utcGate()
	critical := []models.Category{models.CategoryHighErrorRate, models.CategoryMemoryLeak, models.CategoryDatabaseConnection}

	for _, category := range critical {
		for hour := 0; hour < 24; hour++ {
			now := time.Date(2024, 5, 1, hour, 30, 0, 0, time.UTC)
			history := fullHistory(category, now, 50)
			if !gate.ShouldHeal(category, history, now) {
				t.Fatalf("%s at %02d:30 should always heal", category, hour)
			}
		}
	}
}

func TestPolicyGateRateLimit(t *testing.T) {
	gate := utcGate()
	now := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

	if !gate.ShouldHeal(models.CategoryCacheMiss, fullHistory(models.CategoryCacheMiss, now, 3), now) {
		t.Fatalf("three recent healings should not trip the limit")
	}

	verdict := gate.Evaluate(models.CategoryCacheMiss, fullHistory(models.CategoryCacheMiss, now, 4), now)
	if verdict.Allow || verdict.Outcome != models.OutcomeRateLimited {
		t.Fatalf("expected rate limit after four healings, got %+v", verdict)
	}

	other := fullHistory(models.CategoryRateLimit, now, 10)
	if !gate.ShouldHeal(models.CategoryCacheMiss, other, now) {
		t.Fatalf("healings of other categories must not count")
	}
}

func TestPolicyGatePeakHours(t *testing.T) {
	gate := utcGate()

	cases := map[int]bool{8: true, 9: false, 10: false, 17: false, 18: true}
	for hour, allowed := range cases {
		now := time.Date(2024, 5, 1, hour, 0, 0, 0, time.UTC)
		verdict := gate.Evaluate(models.CategorySlowResponse, NewHistory(10), now)
		if verdict.Allow != allowed {
			t.Fatalf("hour %d: expected allow=%v, got %+v", hour, allowed, verdict)
		}
		if !allowed && verdict.Outcome != models.OutcomePeakHour {
			t.Fatalf("hour %d: expected peak_hour outcome, got %s", hour, verdict.Outcome)
		}
	}
}

func TestPolicyGateUsesConfiguredTimezone(t *testing.T) {
	tokyo := time.FixedZone("UTC+9", 9*60*60)
	cfg := DefaultPolicyConfig()
	cfg.Location = tokyo
	gate := NewPolicyGate(cfg)

	// 01:00 UTC is 10:00 at UTC+9.
	now := time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)
	if gate.ShouldHeal(models.CategorySlowResponse, nil, now) {
		t.Fatalf("expected peak hour in configured zone")
	}
}
