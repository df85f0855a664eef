package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/aegisops/aegis/internal/engine"
)

func mustStruct(t *testing.T, v map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(v)
	require.NoError(t, err)
	return s
}

func TestControlLoopIngestEvents(t *testing.T) {
	stack := newTestStack(t, Options{})
	svc := NewControlLoopService(nil, stack.service)

	resp, err := svc.IngestEvents(context.Background(), mustStruct(t, map[string]any{
		"source": "log",
		"events": []any{
			map[string]any{"level": "error", "message": "timeout", "service": "api"},
		},
	}))
	require.NoError(t, err)
	assert.True(t, resp.Fields["success"].GetBoolValue())
	assert.EqualValues(t, 1, resp.Fields["processed"].GetNumberValue())

	_, err = svc.IngestEvents(context.Background(), mustStruct(t, map[string]any{"source": "carrier_pigeon"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	stack.drain(t)

	_, err = svc.IngestEvents(context.Background(), mustStruct(t, map[string]any{"source": "telemetry", "events": []any{}}))
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestControlLoopHealAndStats(t *testing.T) {
	stack := newTestStack(t, Options{})
	defer stack.drain(t)
	svc := NewControlLoopService(nil, stack.service)

	resp, err := svc.Heal(context.Background(), mustStruct(t, map[string]any{
		"category": "high_gas_cost",
		"event":    map[string]any{"eventType": "web3_transaction", "gasUsed": "3000000"},
	}))
	require.NoError(t, err)
	decision := resp.Fields["decision"].GetStructValue()
	require.NotNil(t, decision)
	assert.Equal(t, "triggered", decision.Fields["outcome"].GetStringValue())

	_, err = svc.Heal(context.Background(), mustStruct(t, map[string]any{"category": "solar_flare"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	stats, err := svc.GetStats(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	engineStats := stats.Fields["decision_engine"].GetStructValue()
	require.NotNil(t, engineStats)
	assert.EqualValues(t, 1, engineStats.Fields["healings_triggered"].GetNumberValue())
}

func TestControlLoopControlOperations(t *testing.T) {
	stack := newTestStack(t, Options{})
	defer stack.drain(t)
	svc := NewControlLoopService(nil, stack.service)
	ctx := context.Background()

	_, err := svc.Control(ctx, mustStruct(t, map[string]any{"operation": OpPause}))
	require.NoError(t, err)
	assert.True(t, stack.engine.Paused())

	_, err = svc.Control(ctx, mustStruct(t, map[string]any{"operation": OpResume}))
	require.NoError(t, err)
	assert.False(t, stack.engine.Paused())

	resp, err := svc.Control(ctx, mustStruct(t, map[string]any{"operation": OpSetMode, "mode": engine.ModeSuggest}))
	require.NoError(t, err)
	assert.Equal(t, engine.ModeSuggest, resp.Fields["mode"].GetStringValue())

	_, err = svc.Control(ctx, mustStruct(t, map[string]any{"operation": OpSetThreshold, "level": 1.5}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.Control(ctx, mustStruct(t, map[string]any{"operation": OpSetThreshold, "level": 0.6}))
	require.NoError(t, err)
	assert.Equal(t, 0.6, stack.engine.TriggerThreshold())

	_, err = svc.Control(ctx, mustStruct(t, map[string]any{"operation": OpSetTelemetry}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.Control(ctx, mustStruct(t, map[string]any{"operation": OpApproveSuggestion, "suggestion_id": "missing"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = svc.Control(ctx, mustStruct(t, map[string]any{"operation": "reboot_universe"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
