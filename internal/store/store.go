package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"herwigbench/internal/config"
	"herwigbench/internal/model"
)

var (
	// ErrDisabled is returned by New when history is switched off.
	ErrDisabled = errors.New("history store disabled")
	ErrNotFound = errors.New("experiment not found")
)

// Store persists experiments and their kept measurements.
type Store interface {
	SaveExperiment(ctx context.Context, exp *model.Experiment) error
	SaveMeasurement(ctx context.Context, experimentID string, m model.PhaseMeasurement) error
	FinishExperiment(ctx context.Context, exp *model.Experiment) error
	ListExperiments(ctx context.Context, limit int) ([]model.Experiment, error)
	GetExperiment(ctx context.Context, id string) (*model.Experiment, error)
	// LoadMeasurements returns an experiment's rows for phase in iteration
	// order. An empty phase loads both.
	LoadMeasurements(ctx context.Context, experimentID string, phase model.Phase) ([]model.PhaseMeasurement, error)
	Close() error
}

// DefaultSQLitePath is used when no DSN is configured for sqlite.
const DefaultSQLitePath = ".herwig-bench.db"

// New opens the backend named by cfg.Type.
func New(cfg config.Store) (Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "postgres", "postgresql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres connection string is required")
		}
		return NewPostgresStore(cfg.DSN)
	case "", "sqlite", "sqlite3":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		return NewSQLiteStore(dsn)
	case "none":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
