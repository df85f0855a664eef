package engine

import (
	"time"

	"github.com/aegisops/aegis/internal/models"
	"github.com/aegisops/aegis/internal/utils"
)

// PolicyConfig tunes the policy gate.
type PolicyConfig struct {
	RateLimitWindow   time.Duration
	MaxRecentHealings int
	PeakStartHour     int
	PeakEndHour       int
	Location          *time.Location
}

// DefaultPolicyConfig returns the built-in gate settings.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		RateLimitWindow:   5 * time.Minute,
		MaxRecentHealings: 3,
		PeakStartHour:     9,
		PeakEndHour:       17,
		Location:          time.Local,
	}
}

// Verdict is the gate outcome with the deciding rule.
type Verdict struct {
	Allow   bool
	Outcome models.Outcome
	Rule    string
}

// PolicyGate decides whether a classified anomaly should be remediated.
type PolicyGate struct {
	cfg PolicyConfig
}

// NewPolicyGate constructs a gate, filling zero values with defaults.
func NewPolicyGate(cfg PolicyConfig) *PolicyGate {
	def := DefaultPolicyConfig()
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = def.RateLimitWindow
	}
	if cfg.MaxRecentHealings <= 0 {
		cfg.MaxRecentHealings = def.MaxRecentHealings
	}
	if cfg.PeakStartHour == 0 && cfg.PeakEndHour == 0 {
		cfg.PeakStartHour, cfg.PeakEndHour = def.PeakStartHour, def.PeakEndHour
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &PolicyGate{cfg: cfg}
}

// IsCritical reports whether the category bypasses rate limiting and peak-hour gating.
func IsCritical(category models.Category) bool {
	switch category {
	case models.CategoryHighErrorRate, models.CategoryMemoryLeak, models.CategoryDatabaseConnection:
		return true
	default:
		return false
	}
}

// ShouldHeal reports whether remediation should fire for category at now.
func (g *PolicyGate) ShouldHeal(category models.Category, history HistoryView, now time.Time) bool {
	return g.Evaluate(category, history, now).Allow
}

// Evaluate applies the ordered gate rules; the first decisive rule wins.
func (g *PolicyGate) Evaluate(category models.Category, history HistoryView, now time.Time) Verdict {
	if IsCritical(category) {
		return Verdict{Allow: true, Outcome: models.OutcomeTriggered, Rule: "critical"}
	}

	if history != nil {
		recent := history.CountTriggered(category, now.Add(-g.cfg.RateLimitWindow), now)
		if recent > g.cfg.MaxRecentHealings {
			return Verdict{Allow: false, Outcome: models.OutcomeRateLimited, Rule: "rate_limit"}
		}
	}

	if g.InPeakHours(now) {
		return Verdict{Allow: false, Outcome: models.OutcomePeakHour, Rule: "peak_hour"}
	}

	return Verdict{Allow: true, Outcome: models.OutcomeTriggered, Rule: "default"}
}

// InPeakHours reports whether now falls in the inclusive peak hour range.
func (g *PolicyGate) InPeakHours(now time.Time) bool {
	hour := utils.HourIn(now, g.cfg.Location)
	return hour >= g.cfg.PeakStartHour && hour <= g.cfg.PeakEndHour
}

// Config returns the effective gate settings.
func (g *PolicyGate) Config() PolicyConfig {
	return g.cfg
}
