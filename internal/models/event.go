package models

import "time"

// EventSource identifies which ingestion boundary produced an event.
type EventSource string

const (
	SourceTelemetry EventSource = "telemetry"
	SourceWeb3      EventSource = "web3"
	SourceLog       EventSource = "log"
	SourceMonitor   EventSource = "monitor"
	SourceManual    EventSource = "manual"
)

// KindWeb3Transaction is the event kind emitted for on-chain transactions.
const KindWeb3Transaction = "web3_transaction"

// Event is a unit of ingested telemetry, log or chain activity. Events are
// created at an ingestion boundary and treated as read-only by the loop.
type Event struct {
	ID          string         `json:"id,omitempty"`
	Kind        string         `json:"eventType"`
	Name        string         `json:"eventName,omitempty"`
	Source      EventSource    `json:"source,omitempty"`
	SessionID   string         `json:"sessionId,omitempty"`
	UserID      string         `json:"userId,omitempty"`
	Service     string         `json:"service,omitempty"`
	GasUsed     string         `json:"gasUsed,omitempty"`
	Performance *Performance   `json:"performance,omitempty"`
	Error       *ErrorInfo     `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Performance carries optional runtime measurements attached to an event.
// Absent measurements are zero.
type Performance struct {
	ResponseTime       float64 `json:"responseTime,omitempty"`
	ErrorRate          float64 `json:"errorRate,omitempty"`
	RequestCount       float64 `json:"requestCount,omitempty"`
	MemoryUsage        float64 `json:"memoryUsage,omitempty"`
	CPUUsage           float64 `json:"cpuUsage,omitempty"`
	GasCost            float64 `json:"gasCost,omitempty"`
	TransactionSuccess float64 `json:"transactionSuccess,omitempty"`
}

// ErrorInfo is the error indicator carried by failing events.
type ErrorInfo struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// HasError reports whether the event carries an error indicator.
func (e Event) HasError() bool {
	return e.Error != nil
}

// MetadataString returns a metadata value as a string when it is one.
func (e Event) MetadataString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	if v, ok := e.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// MetadataStrings returns a metadata list of strings, skipping non-string items.
func (e Event) MetadataStrings(key string) []string {
	if e.Metadata == nil {
		return nil
	}
	switch v := e.Metadata[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
