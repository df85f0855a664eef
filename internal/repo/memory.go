package repo

import (
	"context"
	"sync"
	"time"

	"github.com/aegisops/aegis/internal/models"
)

const defaultMemoryCapacity = 10000

// MemoryStore is an in-process telemetry store and persistent log, bounded to
// the most recent entries of each kind.
type MemoryStore struct {
	mu       sync.RWMutex
	events   []models.Event
	attempts []models.HealingAttempt
	alerts   []models.Alert
	capacity int
	now      func() time.Time
}

// NewMemoryStore creates a store keeping up to capacity entries per kind.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity, now: time.Now}
}

// Store implements TelemetryStore.
func (m *MemoryStore) Store(_ context.Context, events []models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = bounded(append(m.events, events...), m.capacity)
	return nil
}

// Recent implements TelemetryStore.
func (m *MemoryStore) Recent(_ context.Context, window time.Duration) ([]models.Event, error) {
	cutoff := m.now().Add(-window)

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Event, 0, len(m.events))
	for _, e := range m.events {
		if e.Timestamp.After(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

// AppendAttempt implements PersistentLog.
func (m *MemoryStore) AppendAttempt(_ context.Context, attempt models.HealingAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = bounded(append(m.attempts, attempt), m.capacity)
	return nil
}

// AppendAlert implements PersistentLog.
func (m *MemoryStore) AppendAlert(_ context.Context, alert models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = bounded(append(m.alerts, alert), m.capacity)
	return nil
}

// Attempts returns the recorded healing attempts, oldest first.
func (m *MemoryStore) Attempts() []models.HealingAttempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.HealingAttempt(nil), m.attempts...)
}

// Alerts returns the recorded alerts, oldest first.
func (m *MemoryStore) Alerts() []models.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Alert(nil), m.alerts...)
}

func bounded[T any](items []T, capacity int) []T {
	if over := len(items) - capacity; over > 0 {
		return append(items[:0], items[over:]...)
	}
	return items
}
