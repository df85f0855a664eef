package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/aegisops/aegis/internal/models"
)

var (
	eventKinds   = []string{"page_view", "api_call", "checkout", "login", "search"}
	serviceNames = []string{"gateway", "payments", "catalog", "auth", "wallet"}
	logLevels    = []string{"debug", "info", "info", "warn", models.LogLevelError}
)

// generator produces synthetic traffic. anomalyRate is the fraction of
// telemetry events that carry an anomalous signal.
type generator struct {
	faker       *gofakeit.Faker
	anomalyRate float64
}

func newGenerator(seed uint64, anomalyRate float64) *generator {
	return &generator{faker: gofakeit.New(seed), anomalyRate: anomalyRate}
}

func (g *generator) telemetry(n int) []models.Event {
	out := make([]models.Event, 0, n)
	for i := 0; i < n; i++ {
		e := models.Event{
			Kind:      g.faker.RandomString(eventKinds),
			Name:      g.faker.HackerVerb(),
			SessionID: g.faker.UUID(),
			UserID:    g.faker.Username(),
			Service:   g.faker.RandomString(serviceNames),
			Timestamp: time.Now().UTC(),
			Performance: &models.Performance{
				ResponseTime: g.faker.Float64Range(40, 900),
				MemoryUsage:  g.faker.Float64Range(0.2, 0.6),
				CPUUsage:     g.faker.Float64Range(0.1, 0.5),
				RequestCount: float64(g.faker.IntRange(1, 50)),
			},
			Metadata: map[string]any{"ip": g.faker.IPv4Address(), "userAgent": g.faker.UserAgent()},
		}
		if g.faker.Float64Range(0, 1) < g.anomalyRate {
			g.corrupt(&e)
		}
		out = append(out, e)
	}
	return out
}

func (g *generator) corrupt(e *models.Event) {
	switch g.faker.IntRange(0, 3) {
	case 0:
		e.Error = &models.ErrorInfo{Message: g.faker.HackerPhrase(), Type: "ServerError"}
	case 1:
		e.Performance.ResponseTime = g.faker.Float64Range(6000, 15000)
	case 2:
		e.Performance.MemoryUsage = g.faker.Float64Range(0.92, 0.99)
	default:
		e.Performance.ErrorRate = g.faker.Float64Range(0.2, 0.6)
		e.Kind = "database_query"
	}
}

func (g *generator) web3(n int) []models.Web3Event {
	out := make([]models.Web3Event, 0, n)
	for i := 0; i < n; i++ {
		gas := g.faker.IntRange(21000, 300000)
		if g.faker.Float64Range(0, 1) < g.anomalyRate {
			gas = g.faker.IntRange(1_200_000, 5_000_000)
		}
		out = append(out, models.Web3Event{
			Contract:    "0x" + g.faker.LetterN(40),
			Event:       g.faker.RandomString([]string{"Transfer", "Swap", "Approval", "Mint"}),
			BlockNumber: int64(g.faker.IntRange(18_000_000, 19_000_000)),
			TxHash:      fmt.Sprintf("0x%s", g.faker.LetterN(64)),
			GasUsed:     strconv.Itoa(gas),
			Timestamp:   time.Now().UTC(),
		})
	}
	return out
}

func (g *generator) logs(n int) []models.LogEntry {
	out := make([]models.LogEntry, 0, n)
	for i := 0; i < n; i++ {
		level := g.faker.RandomString(logLevels)
		if g.faker.Float64Range(0, 1) < g.anomalyRate/4 {
			level = models.LogLevelFatal
		}
		out = append(out, models.LogEntry{
			Level:     level,
			Message:   g.faker.HackerPhrase(),
			Service:   g.faker.RandomString(serviceNames),
			Timestamp: time.Now().UTC(),
		})
	}
	return out
}
