package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisops/aegis/internal/engine"
	"github.com/aegisops/aegis/internal/models"
	"github.com/aegisops/aegis/internal/services"
)

type fakeController struct {
	telemetry   []models.Event
	web3        []models.Web3Event
	logs        []models.LogEntry
	paused      bool
	mode        string
	threshold   float64
	enabled     bool
	healErr     error
	healed      string
	suggestions []models.Suggestion
}

func (f *fakeController) IngestTelemetry(_ context.Context, events []models.Event) (int, error) {
	if !f.enabled {
		return 0, services.ErrTelemetryDisabled
	}
	f.telemetry = append(f.telemetry, events...)
	return len(events), nil
}

func (f *fakeController) IngestWeb3(_ context.Context, events []models.Web3Event) (int, error) {
	f.web3 = append(f.web3, events...)
	return len(events), nil
}

func (f *fakeController) IngestLogs(_ context.Context, entries []models.LogEntry) (int, error) {
	f.logs = append(f.logs, entries...)
	return len(entries), nil
}

func (f *fakeController) Heal(_ context.Context, category string, _ models.Event) (engine.Result, error) {
	if f.healErr != nil {
		return engine.Result{}, f.healErr
	}
	f.healed = category
	return engine.Result{Decision: models.Decision{ID: "d-1", Category: models.Category(category), Outcome: models.OutcomeTriggered}}, nil
}

func (f *fakeController) Pause()  { f.paused = true }
func (f *fakeController) Resume() { f.paused = false }

func (f *fakeController) SetMode(mode string) error {
	if mode != engine.ModeAutonomous && mode != engine.ModeSuggest {
		return fmt.Errorf("unknown mode %q", mode)
	}
	f.mode = mode
	return nil
}

func (f *fakeController) SetTriggerThreshold(v float64) error {
	if v <= 0 || v > 1 {
		return fmt.Errorf("out of range")
	}
	f.threshold = v
	return nil
}

func (f *fakeController) SetTelemetryEnabled(enabled bool) { f.enabled = enabled }

func (f *fakeController) ApproveSuggestion(_ context.Context, id string) (engine.Result, error) {
	for _, s := range f.suggestions {
		if s.ID == id {
			return engine.Result{Decision: models.Decision{Category: s.Category, Outcome: models.OutcomeTriggered}}, nil
		}
	}
	return engine.Result{}, engine.ErrSuggestionNotFound
}

func (f *fakeController) RejectSuggestion(string) error { return engine.ErrSuggestionNotFound }

func (f *fakeController) PendingSuggestions(limit int) []models.Suggestion {
	if limit > 0 && len(f.suggestions) > limit {
		return f.suggestions[:limit]
	}
	return f.suggestions
}

func (f *fakeController) RecentDecisions(int) []models.Decision { return nil }

func (f *fakeController) Stats() models.Stats {
	return models.Stats{Decisions: models.DecisionStats{DecisionsMade: 7, Mode: f.mode}}
}

func (f *fakeController) Health() services.Health {
	return services.Health{Status: "healthy", Mode: f.mode, Components: []string{"memory_store"}, Timestamp: time.Now()}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIngestEndpoints(t *testing.T) {
	ctl := &fakeController{enabled: true}
	router := NewRouter(nil, ctl)

	rec := do(t, router, http.MethodPost, "/aegis/v1/ingest/telemetry", map[string]any{
		"events": []map[string]any{
			{"eventType": "page_view", "sessionId": "s1", "timestamp": 1714564800000},
			{"eventType": "api_call", "error": map[string]any{"message": "boom"}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ack struct {
		Success   bool `json:"success"`
		Processed int  `json:"processed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.True(t, ack.Success)
	assert.Equal(t, 2, ack.Processed)
	require.Len(t, ctl.telemetry, 2)
	assert.Equal(t, int64(1714564800000), ctl.telemetry[0].Timestamp.UnixMilli())
	assert.True(t, ctl.telemetry[1].HasError())

	rec = do(t, router, http.MethodPost, "/aegis/v1/ingest/web3", map[string]any{
		"events": []map[string]any{{"contract": "0xabc", "event": "Swap", "gasUsed": "1200000"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ctl.web3, 1)

	rec = do(t, router, http.MethodPost, "/aegis/v1/ingest/log", map[string]any{
		"logs": []map[string]any{{"level": "fatal", "message": "oom", "service": "api"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ctl.logs, 1)
	assert.True(t, ctl.logs[0].IsFatal())

	rec = do(t, router, http.MethodPost, "/aegis/v1/ingest/log", map[string]any{"wrong": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ctl.enabled = false
	rec = do(t, router, http.MethodPost, "/aegis/v1/ingest/telemetry", map[string]any{"events": []any{}})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestControlEndpoints(t *testing.T) {
	ctl := &fakeController{enabled: true, mode: engine.ModeAutonomous}
	router := NewRouter(nil, ctl)

	rec := do(t, router, http.MethodPost, "/api/aegis/control/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ctl.paused)

	rec = do(t, router, http.MethodPost, "/api/aegis/control/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ctl.paused)

	rec = do(t, router, http.MethodPut, "/api/aegis/control/set_mode", map[string]any{"mode": "suggest"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, engine.ModeSuggest, ctl.mode)

	rec = do(t, router, http.MethodPut, "/api/aegis/control/set_mode", map[string]any{"mode": "chaos"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/api/aegis/config/anomaly_threshold", map[string]any{"level": 0.7})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.7, ctl.threshold)

	rec = do(t, router, http.MethodPut, "/api/aegis/config/anomaly_threshold", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/api/aegis/config/telemetry", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ctl.enabled)
}

func TestTriggerActionMapsErrors(t *testing.T) {
	ctl := &fakeController{}
	router := NewRouter(nil, ctl)

	rec := do(t, router, http.MethodPost, "/api/aegis/control/trigger_action", map[string]any{
		"category": "cache_miss",
		"event":    map[string]any{"eventType": "api_call"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cache_miss", ctl.healed)

	var resp StandardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)

	ctl.healErr = services.ErrManualHealLimited
	rec = do(t, router, http.MethodPost, "/api/aegis/control/trigger_action", map[string]any{"category": "cache_miss"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	ctl.healErr = fmt.Errorf("%w: %q", services.ErrUnknownCategory, "x")
	rec = do(t, router, http.MethodPost, "/api/aegis/control/trigger_action", map[string]any{"category": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestionEndpoints(t *testing.T) {
	ctl := &fakeController{suggestions: []models.Suggestion{
		{ID: "s-2", Category: models.CategoryCacheMiss},
		{ID: "s-1", Category: models.CategoryRateLimit},
	}}
	router := NewRouter(nil, ctl)

	rec := do(t, router, http.MethodGet, "/api/aegis/suggestions/pending?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []models.Suggestion `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "s-2", resp.Data[0].ID)

	rec = do(t, router, http.MethodGet, "/api/aegis/suggestions/pending?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/aegis/control/approve_action/s-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/aegis/control/reject_action/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndStats(t *testing.T) {
	router := NewRouter(nil, &fakeController{mode: engine.ModeAutonomous})

	rec := do(t, router, http.MethodGet, "/aegis/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health services.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, []string{"memory_store"}, health.Components)

	rec = do(t, router, http.MethodGet, "/aegis/v1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 7, stats.Decisions.DecisionsMade)

	rec = do(t, router, http.MethodGet, "/api/aegis/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
