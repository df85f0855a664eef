package api

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/aegisops/aegis/internal/models"
	"github.com/aegisops/aegis/internal/utils"
)

// TelemetryEvent is the wire shape of an ingested telemetry event.
// Timestamps are unix milliseconds.
type TelemetryEvent struct {
	SessionID   string              `json:"sessionId"`
	UserID      string              `json:"userId,omitempty"`
	EventType   string              `json:"eventType"`
	EventName   string              `json:"eventName"`
	Service     string              `json:"service,omitempty"`
	GasUsed     string              `json:"gasUsed,omitempty"`
	Timestamp   int64               `json:"timestamp"`
	Metadata    map[string]any      `json:"metadata,omitempty"`
	Performance *models.Performance `json:"performance,omitempty"`
	Error       *models.ErrorInfo   `json:"error,omitempty"`
}

// Web3Event is the wire shape of a chain event.
type Web3Event struct {
	Contract    string         `json:"contract"`
	Event       string         `json:"event"`
	BlockNumber int64          `json:"blockNumber"`
	TxHash      string         `json:"txHash"`
	GasUsed     string         `json:"gasUsed"`
	Timestamp   int64          `json:"timestamp,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// LogEvent is the wire shape of a log line.
type LogEvent struct {
	Level     string         `json:"level" binding:"required"`
	Message   string         `json:"message"`
	Service   string         `json:"service"`
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// HealRequest asks for a manual remediation of a category.
type HealRequest struct {
	Category string         `json:"category" binding:"required"`
	Event    TelemetryEvent `json:"event"`
}

// IngestRequest is the body of the IngestEvents RPC.
type IngestRequest struct {
	Source string            `json:"source"`
	Events []json.RawMessage `json:"events"`
}

// ControlRequest is the body of the Control RPC.
type ControlRequest struct {
	Operation    string  `json:"operation"`
	Mode         string  `json:"mode,omitempty"`
	Level        float64 `json:"level,omitempty"`
	SuggestionID string  `json:"suggestion_id,omitempty"`
	Enabled      *bool   `json:"enabled,omitempty"`
}

// ToModel converts the wire event into a domain event.
func (e TelemetryEvent) ToModel() models.Event {
	return models.Event{
		Kind:        e.EventType,
		Name:        e.EventName,
		SessionID:   e.SessionID,
		UserID:      e.UserID,
		Service:     e.Service,
		GasUsed:     e.GasUsed,
		Performance: e.Performance,
		Error:       e.Error,
		Metadata:    e.Metadata,
		Timestamp:   utils.FromUnixMillis(e.Timestamp),
	}
}

// ToModel converts the wire chain event into a domain chain event.
func (e Web3Event) ToModel() models.Web3Event {
	return models.Web3Event{
		Contract:    e.Contract,
		Event:       e.Event,
		BlockNumber: e.BlockNumber,
		TxHash:      e.TxHash,
		GasUsed:     e.GasUsed,
		Data:        e.Data,
		Timestamp:   utils.FromUnixMillis(e.Timestamp),
	}
}

// ToModel converts the wire log line into a domain log entry.
func (e LogEvent) ToModel() models.LogEntry {
	return models.LogEntry{
		Level:     e.Level,
		Message:   e.Message,
		Service:   e.Service,
		Metadata:  e.Metadata,
		Timestamp: utils.FromUnixMillis(e.Timestamp),
	}
}

// TelemetryEvents converts a batch of wire events.
func TelemetryEvents(in []TelemetryEvent) []models.Event {
	out := make([]models.Event, 0, len(in))
	for _, e := range in {
		out = append(out, e.ToModel())
	}
	return out
}

// Web3Events converts a batch of wire chain events.
func Web3Events(in []Web3Event) []models.Web3Event {
	out := make([]models.Web3Event, 0, len(in))
	for _, e := range in {
		out = append(out, e.ToModel())
	}
	return out
}

// LogEntries converts a batch of wire log lines.
func LogEntries(in []LogEvent) []models.LogEntry {
	out := make([]models.LogEntry, 0, len(in))
	for _, e := range in {
		out = append(out, e.ToModel())
	}
	return out
}

// FromStruct decodes a protobuf struct into a JSON-tagged Go value.
func FromStruct(in *structpb.Struct, out any) error {
	if in == nil {
		return fmt.Errorf("request is nil")
	}
	raw, err := in.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode struct: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// ToStruct encodes a JSON-tagged Go value as a protobuf struct.
func ToStruct(in any) (*structpb.Struct, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// DecodeBatch decodes raw events into a slice of T.
func DecodeBatch[T any](raw []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raw))
	for i, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Accepted is the acknowledgement returned by ingestion endpoints.
type Accepted struct {
	Success   bool  `json:"success"`
	Processed int   `json:"processed"`
	Timestamp int64 `json:"timestamp"`
}

// NewAccepted builds an acknowledgement for n events.
func NewAccepted(n int) Accepted {
	return Accepted{Success: true, Processed: n, Timestamp: time.Now().UnixMilli()}
}
