package models

import "time"

// Outcome is the terminal state of one anomaly evaluation.
type Outcome string

const (
	OutcomeSuppressed  Outcome = "suppressed"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomePeakHour    Outcome = "peak_hour"
	OutcomeNoAction    Outcome = "no_action"
	OutcomePaused      Outcome = "paused"
	OutcomeSuggested   Outcome = "suggested"
	OutcomeTriggered   Outcome = "triggered"
)

// Decision records whether remediation fired for an evaluated anomaly.
// Decisions are never mutated after creation.
type Decision struct {
	ID               string    `json:"id"`
	Category         Category  `json:"category"`
	Score            float64   `json:"score"`
	HealingTriggered bool      `json:"healing_triggered"`
	Outcome          Outcome   `json:"outcome"`
	Timestamp        time.Time `json:"timestamp"`
}

// HealingAttempt is produced once per Healer invocation.
type HealingAttempt struct {
	ID         string        `json:"id"`
	DecisionID string        `json:"decision_id,omitempty"`
	Category   Category      `json:"category"`
	Action     ActionID      `json:"action,omitempty"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
}

// AlertKind names the condition that raised an alert.
type AlertKind string

const (
	AlertCPU           AlertKind = "high_cpu"
	AlertMemory        AlertKind = "high_memory"
	AlertErrorRate     AlertKind = "high_error_rate"
	AlertResponseTime  AlertKind = "slow_response"
	AlertGasUsage      AlertKind = "high_gas_usage"
	AlertCriticalError AlertKind = "critical_error"
)

// Alert records a threshold breach or an operator-facing notification.
type Alert struct {
	ID        string    `json:"id"`
	Kind      AlertKind `json:"kind"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// Suggestion is a gate-approved remediation waiting for operator approval.
type Suggestion struct {
	ID         string    `json:"id"`
	DecisionID string    `json:"decision_id"`
	Category   Category  `json:"category"`
	Action     ActionID  `json:"action"`
	Score      float64   `json:"score"`
	Event      Event     `json:"event"`
	CreatedAt  time.Time `json:"created_at"`
}

// HealingRequest asks the healer to run the action bound to a classified anomaly.
type HealingRequest struct {
	DecisionID string
	Category   Category
	Action     ActionID
	Event      Event
}
