package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegisops/aegis/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS telemetry_events (
	id          TEXT PRIMARY KEY,
	event_type  TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	service     TEXT NOT NULL DEFAULT '',
	payload     JSONB NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS telemetry_events_occurred_at_idx ON telemetry_events (occurred_at);

CREATE TABLE IF NOT EXISTS healing_attempts (
	id           TEXT PRIMARY KEY,
	decision_id  TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL,
	action       TEXT NOT NULL DEFAULT '',
	success      BOOLEAN NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	duration_ms  BIGINT NOT NULL,
	attempted_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id        TEXT PRIMARY KEY,
	kind      TEXT NOT NULL,
	severity  TEXT NOT NULL,
	message   TEXT NOT NULL,
	value     DOUBLE PRECISION NOT NULL,
	threshold DOUBLE PRECISION NOT NULL,
	raised_at TIMESTAMPTZ NOT NULL
);
`

// ErrClosed is returned by PostgresStore operations after Close.
var ErrClosed = errors.New("postgres store closed")

// PostgresConfig holds pool settings.
type PostgresConfig struct {
	URL      string
	MaxConns int32
	Timeout  time.Duration
}

// PostgresStore implements TelemetryStore and PersistentLog on PostgreSQL.
// Reconnect swaps the pool in place.
type PostgresStore struct {
	cfg    PostgresConfig
	mu     sync.RWMutex
	pool   *pgxpool.Pool
	closed bool
}

// NewPostgresStore opens the pool, pings it and ensures the schema exists.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if _, err := pool.Exec(initCtx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &PostgresStore{cfg: cfg, pool: pool}, nil
}

func openPool(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

func (s *PostgresStore) current() (*pgxpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.pool == nil {
		return nil, ErrClosed
	}
	return s.pool, nil
}

// Store implements TelemetryStore. Events already stored are skipped.
func (s *PostgresStore) Store(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	pool, err := s.current()
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", e.ID, err)
		}
		batch.Queue(`INSERT INTO telemetry_events (id, event_type, source, service, payload, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING`,
			e.ID, e.Kind, string(e.Source), e.Service, payload, e.Timestamp.UTC())
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	return nil
}

// Recent implements TelemetryStore.
func (s *PostgresStore) Recent(ctx context.Context, window time.Duration) ([]models.Event, error) {
	pool, err := s.current()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx,
		`SELECT payload FROM telemetry_events WHERE occurred_at > $1 ORDER BY occurred_at`,
		time.Now().UTC().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var e models.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// AppendAttempt implements PersistentLog.
func (s *PostgresStore) AppendAttempt(ctx context.Context, a models.HealingAttempt) error {
	pool, err := s.current()
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx,
		`INSERT INTO healing_attempts (id, decision_id, category, action, success, error, duration_ms, attempted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.DecisionID, string(a.Category), string(a.Action), a.Success, a.Error, a.Duration.Milliseconds(), a.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("append healing attempt: %w", err)
	}
	return nil
}

// AppendAlert implements PersistentLog.
func (s *PostgresStore) AppendAlert(ctx context.Context, a models.Alert) error {
	pool, err := s.current()
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx,
		`INSERT INTO alerts (id, kind, severity, message, value, threshold, raised_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, string(a.Kind), a.Severity, a.Message, a.Value, a.Threshold, a.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("append alert: %w", err)
	}
	return nil
}

// Reconnect replaces the pool with a freshly dialled one. A closed store
// stays closed.
func (s *PostgresStore) Reconnect(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	pool, err := openPool(ctx, s.cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		pool.Close()
		return ErrClosed
	}
	old := s.pool
	s.pool = pool
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}
