package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps run records in a SQLite database.
type SQLiteStore struct {
	dsn string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(dsn string) *SQLiteStore {
	return &SQLiteStore{dsn: dsn}
}

// Init opens the database and creates the schema. It is a no-op once the
// store is open.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dsn == "" {
		return errors.New("sqlite dsn is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id              TEXT PRIMARY KEY,
			kind            TEXT NOT NULL,
			status          TEXT NOT NULL,
			outcome         TEXT NOT NULL DEFAULT '',
			iterations      INTEGER NOT NULL DEFAULT 0,
			population_size INTEGER NOT NULL DEFAULT 0,
			best_fitness    REAL NOT NULL DEFAULT 0,
			best_genome     TEXT NOT NULL DEFAULT '',
			started_at      TEXT NOT NULL,
			finished_at     TEXT NOT NULL,
			error           TEXT NOT NULL DEFAULT ''
		)
	`)
	return err
}

func (s *SQLiteStore) SaveRun(ctx context.Context, rec RunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, status, outcome, iterations, population_size,
			best_fitness, best_genome, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			status = excluded.status,
			outcome = excluded.outcome,
			iterations = excluded.iterations,
			population_size = excluded.population_size,
			best_fitness = excluded.best_fitness,
			best_genome = excluded.best_genome,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			error = excluded.error
	`, rec.ID, rec.Kind, rec.Status, rec.Outcome, rec.Iterations, rec.PopulationSize,
		rec.BestFitness, rec.BestGenome, formatTime(rec.StartedAt), formatTime(rec.FinishedAt), rec.Error)
	return err
}

const selectRun = `
	SELECT id, kind, status, outcome, iterations, population_size,
		best_fitness, best_genome, started_at, finished_at, error
	FROM runs`

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (RunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return RunRecord{}, false, err
	}

	rec, err := scanRun(db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectRun+` ORDER BY started_at DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("sqlite store is not initialized")
	}
	return s.db, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		rec               RunRecord
		started, finished string
	)
	err := row.Scan(&rec.ID, &rec.Kind, &rec.Status, &rec.Outcome, &rec.Iterations, &rec.PopulationSize,
		&rec.BestFitness, &rec.BestGenome, &started, &finished, &rec.Error)
	if err != nil {
		return RunRecord{}, err
	}
	if rec.StartedAt, err = parseTime(started); err != nil {
		return RunRecord{}, fmt.Errorf("decode run %s: %w", rec.ID, err)
	}
	if rec.FinishedAt, err = parseTime(finished); err != nil {
		return RunRecord{}, fmt.Errorf("decode run %s: %w", rec.ID, err)
	}
	return rec, nil
}

// timeLayout has a fixed width so stored values sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
