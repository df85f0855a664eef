package models

import "time"

// KindLog is the event type of converted log lines.
const KindLog = "log"

// Log levels that carry an error indicator.
const (
	LogLevelError = "error"
	LogLevelFatal = "fatal"
)

// Web3Event is a chain event reported by a blockchain listener.
type Web3Event struct {
	Contract    string         `json:"contract"`
	Event       string         `json:"event"`
	BlockNumber int64          `json:"blockNumber"`
	TxHash      string         `json:"txHash"`
	GasUsed     string         `json:"gasUsed"`
	Data        map[string]any `json:"data,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// LogEntry is an application log line.
type LogEntry struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Service   string         `json:"service"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ToEvent converts a chain event into a web3_transaction event.
func (w Web3Event) ToEvent() Event {
	metadata := map[string]any{
		"contract":    w.Contract,
		"blockNumber": w.BlockNumber,
		"txHash":      w.TxHash,
	}
	for k, v := range w.Data {
		metadata[k] = v
	}
	return Event{
		Kind:      KindWeb3Transaction,
		Name:      w.Event,
		Source:    SourceWeb3,
		Service:   w.Contract,
		GasUsed:   w.GasUsed,
		Metadata:  metadata,
		Timestamp: w.Timestamp,
	}
}

// IsError reports whether the entry is logged at error or fatal level.
func (l LogEntry) IsError() bool {
	return l.Level == LogLevelError || l.Level == LogLevelFatal
}

// IsFatal reports whether the entry is logged at fatal level.
func (l LogEntry) IsFatal() bool {
	return l.Level == LogLevelFatal
}

// ToEvent converts a log line into an event; error and fatal lines carry an error indicator.
func (l LogEntry) ToEvent() Event {
	event := Event{
		Kind:      KindLog,
		Name:      l.Level,
		Source:    SourceLog,
		Service:   l.Service,
		Metadata:  l.Metadata,
		Timestamp: l.Timestamp,
	}
	if l.IsError() {
		event.Error = &ErrorInfo{Message: l.Message, Type: l.Level}
	}
	return event
}
