// Package store persists summaries of finished evolution runs.
package store

import (
	"context"
	"fmt"
	"time"
)

// RunRecord summarizes one evolution run.
type RunRecord struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	Status         string    `json:"status"`
	Outcome        string    `json:"outcome,omitempty"`
	Iterations     int       `json:"iterations"`
	PopulationSize int       `json:"population_size"`
	BestFitness    float64   `json:"best_fitness"`
	BestGenome     string    `json:"best_genome,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Error          string    `json:"error,omitempty"`
}

// Store saves and loads run records.
type Store interface {
	SaveRun(ctx context.Context, rec RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, bool, error)
	// ListRuns returns all records, most recently started first.
	ListRuns(ctx context.Context) ([]RunRecord, error)
	Close() error
}

// NewStore opens the backend named by kind. The dsn is only used by sqlite.
func NewStore(ctx context.Context, kind, dsn string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		s := NewSQLiteStore(dsn)
		if err := s.Init(ctx); err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}
