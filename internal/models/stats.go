package models

// DecisionStats summarises decision engine activity.
type DecisionStats struct {
	DecisionsMade     int64   `json:"decisions_made"`
	HealingsTriggered int64   `json:"healings_triggered"`
	RecentDecisions   int     `json:"recent_decisions"`
	TriggerThreshold  float64 `json:"trigger_threshold"`
	Mode              string  `json:"mode"`
	Paused            bool    `json:"paused"`
}

// HealerStats summarises action execution outcomes.
type HealerStats struct {
	TotalHealings      int64              `json:"total_healings"`
	SuccessfulHealings int64              `json:"successful_healings"`
	FailedHealings     int64              `json:"failed_healings"`
	SuccessRate        float64            `json:"success_rate"`
	ByActionType       map[ActionID]int64 `json:"by_action_type"`
}

// ScorerStats summarises scorer activity.
type ScorerStats struct {
	Predictions       int64 `json:"predictions"`
	AnomaliesDetected int64 `json:"anomalies_detected"`
}

// MonitorStats summarises the monitor loop.
type MonitorStats struct {
	Running      bool  `json:"running"`
	Ticks        int64 `json:"ticks"`
	FailedTicks  int64 `json:"failed_ticks"`
	AlertsRaised int64 `json:"alerts_raised"`
}

// Stats is the process-lifetime snapshot exposed to operators.
type Stats struct {
	Decisions DecisionStats `json:"decision_engine"`
	Healer    HealerStats   `json:"auto_healer"`
	Scorer    ScorerStats   `json:"anomaly_detector"`
	Monitor   MonitorStats  `json:"monitor"`
}
