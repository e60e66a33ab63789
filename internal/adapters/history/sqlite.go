package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/patti-j/planettogetheraiv2-sub024/pkg/logger"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/metrics"
)

const (
	defaultBusyTimeout = 5 * time.Second
	defaultMaxLimit    = 500
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS optimization_runs (
	id             TEXT PRIMARY KEY,
	algorithm_id   TEXT NOT NULL,
	algorithm      TEXT NOT NULL,
	success        INTEGER NOT NULL,
	applied        INTEGER NOT NULL,
	execution_time INTEGER NOT NULL,
	message        TEXT NOT NULL DEFAULT '',
	violations     INTEGER NOT NULL DEFAULT 0,
	metrics        TEXT NOT NULL DEFAULT '{}',
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_optimization_runs_created ON optimization_runs (created_at DESC);
`

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db          *sql.DB
	busyTimeout time.Duration
	maxLimit    int
	logger      logger.Logger
	now         func() time.Time
	closed      atomic.Bool
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (creating if needed) the database at dsn. Use ":memory:" for a
// throwaway ledger.
func Open(dsn string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("open history: empty dsn")
	}
	s := &SQLiteStore{
		busyTimeout: defaultBusyTimeout,
		maxLimit:    defaultMaxLimit,
		logger:      logger.Default().Named("history"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// SQLite serializes writers; one connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds())); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open history: %w", err)
	}
	s.db = db
	return s, nil
}

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate history: %w", err)
	}
	s.logger.Debug(ctx, "history schema ready")
	return nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

// Record appends a run.
func (s *SQLiteStore) Record(ctx context.Context, run Run) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if run.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRun)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	m := run.Metrics
	if m == nil {
		m = map[string]int{}
	}
	kpis, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO optimization_runs
			(id, algorithm_id, algorithm, success, applied, execution_time, message, violations, metrics, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.AlgorithmID, run.Algorithm, run.Success, run.Applied, run.ExecutionTime,
		run.Message, run.Violations, string(kpis), run.CreatedAt.UTC().Format(timeLayout),
	)
	metrics.RecordHistoryLatency("record", float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordErrorByComponent("history", "record")
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// List returns up to limit runs, newest first. Limits above the configured
// maximum are capped.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Run, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, algorithm_id, algorithm, success, applied, execution_time, message, violations, metrics, created_at
		FROM optimization_runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	metrics.RecordHistoryLatency("list", float64(time.Since(start).Microseconds())/1000)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Get returns a run by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Run, error) {
	if s.closed.Load() {
		return Run{}, ErrClosed
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, algorithm_id, algorithm, success, applied, execution_time, message, violations, metrics, created_at
		FROM optimization_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return run, err
}

// Count returns the number of recorded runs.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM optimization_runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run       Run
		kpis      string
		createdAt string
	)
	err := sc.Scan(&run.ID, &run.AlgorithmID, &run.Algorithm, &run.Success, &run.Applied,
		&run.ExecutionTime, &run.Message, &run.Violations, &kpis, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(kpis), &run.Metrics); err != nil {
		return Run{}, fmt.Errorf("decode metrics of run %s: %w", run.ID, err)
	}
	if len(run.Metrics) == 0 {
		run.Metrics = nil
	}
	run.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("decode created_at of run %s: %w", run.ID, err)
	}
	return run, nil
}
