package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/aegisops/aegis/internal/models"
)

// Log record types published to Kafka.
const (
	RecordHealingAttempt = "healing_attempt"
	RecordAlert          = "alert"
)

// LogRecord is the JSON envelope published for every log entry.
type LogRecord struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Published time.Time       `json:"published_at"`
}

// KafkaLog publishes healing attempts and alerts to a topic.
type KafkaLog struct {
	client *kgo.Client
	topic  string
}

// NewKafkaClient creates a producer/consumer client for the given brokers.
func NewKafkaClient(brokers []string, opts ...kgo.Opt) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	client, err := kgo.NewClient(append([]kgo.Opt{kgo.SeedBrokers(brokers...)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return client, nil
}

// NewKafkaLog publishes to topic through client.
func NewKafkaLog(client *kgo.Client, topic string) *KafkaLog {
	return &KafkaLog{client: client, topic: topic}
}

// AppendAttempt implements PersistentLog.
func (k *KafkaLog) AppendAttempt(ctx context.Context, attempt models.HealingAttempt) error {
	record, err := encodeLogRecord(k.topic, RecordHealingAttempt, string(attempt.Action), attempt)
	if err != nil {
		return err
	}
	return k.produce(ctx, record)
}

// AppendAlert implements PersistentLog.
func (k *KafkaLog) AppendAlert(ctx context.Context, alert models.Alert) error {
	record, err := encodeLogRecord(k.topic, RecordAlert, string(alert.Kind), alert)
	if err != nil {
		return err
	}
	return k.produce(ctx, record)
}

func (k *KafkaLog) produce(ctx context.Context, record *kgo.Record) error {
	if k.client == nil {
		return fmt.Errorf("kafka log: client not configured")
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka publish %s: %w", record.Topic, err)
	}
	return nil
}

func encodeLogRecord(topic, kind, key string, payload any) (*kgo.Record, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("kafka publish: marshal %s: %w", kind, err)
	}
	now := time.Now().UTC()
	value, err := json.Marshal(LogRecord{Type: kind, Payload: body, Published: now})
	if err != nil {
		return nil, fmt.Errorf("kafka publish: marshal envelope: %w", err)
	}
	return &kgo.Record{
		Topic:     topic,
		Key:       []byte(key),
		Value:     value,
		Timestamp: now,
		Headers:   []kgo.RecordHeader{{Key: "type", Value: []byte(kind)}},
	}, nil
}
