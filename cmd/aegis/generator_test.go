package main

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisops/aegis/internal/config"
	"github.com/aegisops/aegis/internal/utils"
)

func TestGeneratorIsDeterministicPerSeed(t *testing.T) {
	a := newGenerator(7, 0.5).telemetry(20)
	b := newGenerator(7, 0.5).telemetry(20)
	require.Len(t, a, 20)
	for i := range a {
		assert.Equal(t, a[i].Kind, b[i].Kind)
		assert.Equal(t, a[i].SessionID, b[i].SessionID)
	}
}

func TestGeneratorAnomalyRate(t *testing.T) {
	calm := newGenerator(1, 0).telemetry(50)
	for _, e := range calm {
		assert.Nil(t, e.Error)
		assert.Less(t, e.Performance.ResponseTime, 1000.0)
	}

	for _, e := range newGenerator(1, 1).web3(20) {
		gas, err := strconv.Atoi(e.GasUsed)
		require.NoError(t, err)
		assert.Greater(t, gas, 1_000_000)
	}
}

func TestSimulateRunsInMemoryLoop(t *testing.T) {
	cfg := config.Default()
	cfg.Monitor.Enabled = false
	cfg.Healer.SimulateDelays = false

	var out bytes.Buffer
	err := simulate(context.Background(), &out, &cfg, utils.NewLoggerTo(io.Discard, "error", false), simulation{
		batches: 2,
		events:  20,
		gen:     newGenerator(3, 0.4),
	})
	require.NoError(t, err)
	assert.True(t, strings.Contains(out.String(), "Decisions"))
	assert.True(t, strings.Contains(out.String(), "predictions:"), out.String())
}
