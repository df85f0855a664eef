package engine

import (
	"sync"
	"time"

	"github.com/aegisops/aegis/internal/models"
)

// DefaultHistoryCapacity bounds the decision history.
const DefaultHistoryCapacity = 1000

// HistoryView is the read side of the history consulted by the policy gate.
type HistoryView interface {
	// CountTriggered counts triggered decisions for category with a timestamp in (since, until].
	CountTriggered(category models.Category, since, until time.Time) int
}

// History is a fixed-capacity ring of decisions. Reads and appends share one
// lock, so a count never observes a partial append and the bound always holds.
type History struct {
	mu    sync.RWMutex
	buf   []models.Decision
	start int
	size  int
}

// NewHistory creates a history holding at most capacity decisions.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{buf: make([]models.Decision, capacity)}
}

// Append stores a decision, evicting the oldest entry when full.
func (h *History) Append(decision models.Decision) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.append(decision)
}

// Record builds a decision from the current history and appends it within the
// same critical section.
func (h *History) Record(build func(view HistoryView) models.Decision) models.Decision {
	h.mu.Lock()
	defer h.mu.Unlock()
	decision := build(lockedHistory{h})
	h.append(decision)
	return decision
}

// CountTriggered implements HistoryView.
func (h *History) CountTriggered(category models.Category, since, until time.Time) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countTriggered(category, since, until)
}

// Recent returns up to n decisions, newest first. n <= 0 returns all of them.
func (h *History) Recent(n int) []models.Decision {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > h.size {
		n = h.size
	}
	out := make([]models.Decision, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, h.at(h.size-1-i))
	}
	return out
}

// Len returns the number of stored decisions.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Capacity returns the maximum number of stored decisions.
func (h *History) Capacity() int {
	return len(h.buf)
}

func (h *History) append(decision models.Decision) {
	if h.size == len(h.buf) {
		h.buf[h.start] = decision
		h.start = (h.start + 1) % len(h.buf)
		return
	}
	h.buf[(h.start+h.size)%len(h.buf)] = decision
	h.size++
}

func (h *History) at(i int) models.Decision {
	return h.buf[(h.start+i)%len(h.buf)]
}

func (h *History) countTriggered(category models.Category, since, until time.Time) int {
	count := 0
	for i := 0; i < h.size; i++ {
		d := h.at(i)
		if d.Category != category || !d.HealingTriggered {
			continue
		}
		if d.Timestamp.After(since) && !d.Timestamp.After(until) {
			count++
		}
	}
	return count
}

// lockedHistory reads a history whose lock is already held.
type lockedHistory struct {
	h *History
}

func (l lockedHistory) CountTriggered(category models.Category, since, until time.Time) int {
	return l.h.countTriggered(category, since, until)
}
