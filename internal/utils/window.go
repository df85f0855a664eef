package utils

import (
	"math"
	"sync"
)

// RollingWindow keeps the most recent samples of a measurement and derives
// mean and standard deviation from them.
type RollingWindow struct {
	mu      sync.RWMutex
	samples []float64
	next    int
	full    bool
}

// NewRollingWindow creates a window holding up to size samples.
func NewRollingWindow(size int) *RollingWindow {
	if size <= 0 {
		size = 512
	}
	return &RollingWindow{samples: make([]float64, size)}
}

// Observe records a sample, overwriting the oldest once the window is full.
func (w *RollingWindow) Observe(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples[w.next] = v
	w.next = (w.next + 1) % len(w.samples)
	if w.next == 0 {
		w.full = true
	}
}

// Count returns the number of samples held.
func (w *RollingWindow) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count()
}

// MeanStdDev returns the population mean and standard deviation of the window.
func (w *RollingWindow) MeanStdDev() (float64, float64) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	n := w.count()
	if n == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range w.samples[:n] {
		mean += v
	}
	mean /= float64(n)

	variance := 0.0
	for _, v := range w.samples[:n] {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n)
	return mean, math.Sqrt(variance)
}

func (w *RollingWindow) count() int {
	if w.full {
		return len(w.samples)
	}
	return w.next
}
