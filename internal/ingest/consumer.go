package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/aegisops/aegis/internal/api"
	"github.com/aegisops/aegis/internal/models"
)

// Ingester accepts decoded batches.
type Ingester interface {
	IngestTelemetry(ctx context.Context, events []models.Event) (int, error)
	IngestWeb3(ctx context.Context, events []models.Web3Event) (int, error)
	IngestLogs(ctx context.Context, entries []models.LogEntry) (int, error)
}

// Batch groups the events decoded from one poll by source.
type Batch struct {
	Telemetry []models.Event
	Web3      []models.Web3Event
	Logs      []models.LogEntry
}

// Len returns the number of events across all sources.
func (b Batch) Len() int {
	return len(b.Telemetry) + len(b.Web3) + len(b.Logs)
}

// Decode appends the events carried by one record to the batch. Records use
// the same {source, events} envelope as the IngestEvents RPC.
func (b *Batch) Decode(value []byte) error {
	var envelope api.IngestRequest
	if err := json.Unmarshal(value, &envelope); err != nil {
		return fmt.Errorf("parse envelope: %w", err)
	}

	switch models.EventSource(envelope.Source) {
	case models.SourceTelemetry, "":
		events, err := api.DecodeBatch[api.TelemetryEvent](envelope.Events)
		if err != nil {
			return err
		}
		b.Telemetry = append(b.Telemetry, api.TelemetryEvents(events)...)
	case models.SourceWeb3:
		events, err := api.DecodeBatch[api.Web3Event](envelope.Events)
		if err != nil {
			return err
		}
		b.Web3 = append(b.Web3, api.Web3Events(events)...)
	case models.SourceLog:
		entries, err := api.DecodeBatch[api.LogEvent](envelope.Events)
		if err != nil {
			return err
		}
		b.Logs = append(b.Logs, api.LogEntries(entries)...)
	default:
		return fmt.Errorf("unknown source %q", envelope.Source)
	}
	return nil
}

// Consumer reads event envelopes from Kafka and hands them to an Ingester.
type Consumer struct {
	logger *slog.Logger
	client *kgo.Client
	sink   Ingester
}

// NewConsumer wraps a client configured with kgo.ConsumeTopics.
func NewConsumer(logger *slog.Logger, client *kgo.Client, sink Ingester) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{logger: logger, client: client, sink: sink}
}

// Run polls until ctx is cancelled or the client is closed. Undecodable
// records are logged and skipped.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("kafka consumer started")
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Warn("kafka fetch failed",
				slog.String("topic", topic),
				slog.Int("partition", int(partition)),
				slog.Any("error", err),
			)
		})

		var batch Batch
		fetches.EachRecord(func(record *kgo.Record) {
			if err := batch.Decode(record.Value); err != nil {
				c.logger.Warn("skipping kafka record",
					slog.String("topic", record.Topic),
					slog.Int64("offset", record.Offset),
					slog.Any("error", err),
				)
			}
		})
		c.Deliver(ctx, batch)
	}
}

// Deliver forwards a decoded batch to the sink.
func (c *Consumer) Deliver(ctx context.Context, batch Batch) {
	if len(batch.Telemetry) > 0 {
		if _, err := c.sink.IngestTelemetry(ctx, batch.Telemetry); err != nil {
			c.logger.Warn("telemetry batch rejected", slog.Int("count", len(batch.Telemetry)), slog.Any("error", err))
		}
	}
	if len(batch.Web3) > 0 {
		if _, err := c.sink.IngestWeb3(ctx, batch.Web3); err != nil {
			c.logger.Warn("web3 batch rejected", slog.Int("count", len(batch.Web3)), slog.Any("error", err))
		}
	}
	if len(batch.Logs) > 0 {
		if _, err := c.sink.IngestLogs(ctx, batch.Logs); err != nil {
			c.logger.Warn("log batch rejected", slog.Int("count", len(batch.Logs)), slog.Any("error", err))
		}
	}
}
