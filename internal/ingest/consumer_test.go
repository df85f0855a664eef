package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisops/aegis/internal/models"
)

type recordingIngester struct {
	telemetry []models.Event
	web3      []models.Web3Event
	logs      []models.LogEntry
	err       error
}

func (r *recordingIngester) IngestTelemetry(_ context.Context, events []models.Event) (int, error) {
	r.telemetry = append(r.telemetry, events...)
	return len(events), r.err
}

func (r *recordingIngester) IngestWeb3(_ context.Context, events []models.Web3Event) (int, error) {
	r.web3 = append(r.web3, events...)
	return len(events), r.err
}

func (r *recordingIngester) IngestLogs(_ context.Context, entries []models.LogEntry) (int, error) {
	r.logs = append(r.logs, entries...)
	return len(entries), r.err
}

func TestBatchDecodeGroupsBySource(t *testing.T) {
	var batch Batch
	require.NoError(t, batch.Decode([]byte(`{"events":[{"eventType":"page_view","timestamp":1714564800000}]}`)))
	require.NoError(t, batch.Decode([]byte(`{"source":"web3","events":[{"contract":"0xabc","gasUsed":"21000"}]}`)))
	require.NoError(t, batch.Decode([]byte(`{"source":"log","events":[{"level":"error","message":"timeout"}]}`)))

	assert.Equal(t, 3, batch.Len())
	require.Len(t, batch.Telemetry, 1)
	assert.Equal(t, "page_view", batch.Telemetry[0].Kind)
	assert.Equal(t, int64(1714564800000), batch.Telemetry[0].Timestamp.UnixMilli())
	assert.Equal(t, "21000", batch.Web3[0].GasUsed)
	assert.True(t, batch.Logs[0].IsError())
}

func TestBatchDecodeRejectsMalformed(t *testing.T) {
	var batch Batch
	assert.Error(t, batch.Decode([]byte(`not json`)))
	assert.Error(t, batch.Decode([]byte(`{"source":"smoke_signal","events":[]}`)))
	assert.Error(t, batch.Decode([]byte(`{"source":"log","events":[{"level":7}]}`)))
	assert.Zero(t, batch.Len())
}

func TestDeliverRoutesEverySource(t *testing.T) {
	sink := &recordingIngester{err: errors.New("disabled")}
	consumer := NewConsumer(nil, nil, sink)

	consumer.Deliver(context.Background(), Batch{
		Telemetry: []models.Event{{Kind: "a"}},
		Web3:      []models.Web3Event{{Contract: "0x1"}},
		Logs:      []models.LogEntry{{Level: "info"}},
	})

	assert.Len(t, sink.telemetry, 1)
	assert.Len(t, sink.web3, 1)
	assert.Len(t, sink.logs, 1)

	consumer.Deliver(context.Background(), Batch{})
	assert.Len(t, sink.telemetry, 1)
}
