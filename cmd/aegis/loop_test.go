package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisops/aegis/internal/config"
	"github.com/aegisops/aegis/internal/models"
	"github.com/aegisops/aegis/internal/utils"
)

func TestBuildLoopMemoryStoreHoldsFullWindow(t *testing.T) {
	cfg := config.Default()
	cfg.Monitor.Enabled = false
	cfg.Healer.SimulateDelays = false
	require.Greater(t, cfg.Storage.MemoryCapacity, cfg.Policy.HistoryCapacity)

	ctx := context.Background()
	l, err := buildLoop(ctx, &cfg, utils.NewLoggerTo(io.Discard, "error", false), loopOptions{inMemoryCache: true})
	require.NoError(t, err)
	defer l.close()
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		require.NoError(t, l.service.Stop(stopCtx))
	}()

	batches := 3
	for i := 0; i < batches; i++ {
		events := make([]models.Event, cfg.Ingest.MaxBatch)
		for j := range events {
			events[j] = models.Event{Kind: "page_view", Performance: &models.Performance{ResponseTime: 80}}
		}
		_, err := l.service.Evaluate(ctx, events)
		require.NoError(t, err)
	}

	recent, err := l.memory.Recent(ctx, cfg.Monitor.Window)
	require.NoError(t, err)
	assert.Len(t, recent, batches*cfg.Ingest.MaxBatch)
}
