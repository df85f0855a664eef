package monitor

import (
	"github.com/aegisops/aegis/internal/models"
)

// Aggregate is the health summary of one monitoring window.
type Aggregate struct {
	Events          int
	RequestCount    float64
	ErrorCount      int
	ErrorRate       float64
	AvgResponseTime float64
	AvgCPU          float64
	AvgMemory       float64
}

// Thresholds are the static alert limits. A value strictly above its limit breaches.
type Thresholds struct {
	CPU            float64
	Memory         float64
	ErrorRate      float64
	ResponseTimeMs float64
}

// DefaultThresholds returns the built-in limits.
func DefaultThresholds() Thresholds {
	return Thresholds{CPU: 0.80, Memory: 0.85, ErrorRate: 0.05, ResponseTimeMs: 5000}
}

// Summarize computes window aggregates. Events without a request count count
// as one request. Monitor-sourced events are skipped.
func Summarize(events []models.Event) Aggregate {
	var agg Aggregate
	var rtSum, cpuSum, memSum float64
	var rtN, cpuN, memN int

	for _, e := range events {
		if e.Source == models.SourceMonitor {
			continue
		}
		agg.Events++
		requests := 1.0
		if e.HasError() {
			agg.ErrorCount++
		}
		if p := e.Performance; p != nil {
			if p.RequestCount > 0 {
				requests = p.RequestCount
			}
			if p.ResponseTime > 0 {
				rtSum += p.ResponseTime
				rtN++
			}
			if p.CPUUsage > 0 {
				cpuSum += p.CPUUsage
				cpuN++
			}
			if p.MemoryUsage > 0 {
				memSum += p.MemoryUsage
				memN++
			}
		}
		agg.RequestCount += requests
	}

	if agg.Events > 0 {
		agg.ErrorRate = float64(agg.ErrorCount) / float64(agg.Events)
	}
	agg.AvgResponseTime = mean(rtSum, rtN)
	agg.AvgCPU = mean(cpuSum, cpuN)
	agg.AvgMemory = mean(memSum, memN)
	return agg
}

// Breaches lists the alert kinds whose threshold the aggregate exceeds.
func (t Thresholds) Breaches(agg Aggregate) []Breach {
	var out []Breach
	check := func(kind models.AlertKind, value, limit float64) {
		if limit > 0 && value > limit {
			out = append(out, Breach{Kind: kind, Value: value, Threshold: limit})
		}
	}
	check(models.AlertCPU, agg.AvgCPU, t.CPU)
	check(models.AlertMemory, agg.AvgMemory, t.Memory)
	check(models.AlertErrorRate, agg.ErrorRate, t.ErrorRate)
	check(models.AlertResponseTime, agg.AvgResponseTime, t.ResponseTimeMs)
	return out
}

// Breach is a single threshold violation.
type Breach struct {
	Kind      models.AlertKind
	Value     float64
	Threshold float64
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
