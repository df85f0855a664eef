package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/aegisops/aegis/internal/models"
)

func TestHistoryEvictsOldestFirst(t *testing.T) {
	history := NewHistory(3)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		history.Append(models.Decision{ID: string(rune('a' + i)), Timestamp: base.Add(time.Duration(i) * time.Second)})
	}

	if history.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", history.Len())
	}
	recent := history.Recent(0)
	if recent[0].ID != "e" || recent[2].ID != "c" {
		t.Fatalf("unexpected order: %+v", recent)
	}
	if got := history.Recent(1); len(got) != 1 || got[0].ID != "e" {
		t.Fatalf("expected newest decision, got %+v", got)
	}
}

func TestHistoryBoundUnderConcurrentAppends(t *testing.T) {
	history := NewHistory(DefaultHistoryCapacity)

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if i%2 == 0 {
					history.Append(models.Decision{Category: models.CategoryCacheMiss, HealingTriggered: true, Timestamp: time.Now()})
				} else {
					history.Record(func(view HistoryView) models.Decision {
						view.CountTriggered(models.CategoryCacheMiss, time.Now().Add(-time.Minute), time.Now())
						return models.Decision{Category: models.CategorySlowResponse, Timestamp: time.Now()}
					})
				}
				if n := history.Len(); n > DefaultHistoryCapacity {
					t.Errorf("history exceeded bound: %d", n)
				}
			}
		}()
	}
	wg.Wait()

	if history.Len() != DefaultHistoryCapacity {
		t.Fatalf("expected full history of %d, got %d", DefaultHistoryCapacity, history.Len())
	}
}

func TestHistoryWindowBoundaries(t *testing.T) {
	now := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	window := 5 * time.Minute
	history := NewHistory(10)

	history.Append(models.Decision{Category: models.CategoryCacheMiss, HealingTriggered: true, Timestamp: now.Add(-window - time.Second)})
	history.Append(models.Decision{Category: models.CategoryCacheMiss, HealingTriggered: true, Timestamp: now.Add(-window)})
	history.Append(models.Decision{Category: models.CategoryCacheMiss, HealingTriggered: true, Timestamp: now.Add(-4*time.Minute - 59*time.Second)})
	history.Append(models.Decision{Category: models.CategoryCacheMiss, HealingTriggered: true, Timestamp: now})
	history.Append(models.Decision{Category: models.CategoryCacheMiss, HealingTriggered: false, Timestamp: now})
	history.Append(models.Decision{Category: models.CategoryRateLimit, HealingTriggered: true, Timestamp: now})
	history.Append(models.Decision{Category: models.CategoryCacheMiss, HealingTriggered: true, Timestamp: now.Add(time.Second)})

	if got := history.CountTriggered(models.CategoryCacheMiss, now.Add(-window), now); got != 2 {
		t.Fatalf("expected 2 decisions in (now-5m, now], got %d", got)
	}
}
