package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore connects to dsn and applies migrations
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := newPostgresStore(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func newPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{sqlStore{db: db, numbered: true}}
}

func (s *PostgresStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS experiments (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			runs INTEGER NOT NULL,
			warmup INTEGER NOT NULL DEFAULT 0,
			events INTEGER NOT NULL,
			jobs INTEGER NOT NULL,
			input TEXT NOT NULL,
			executor TEXT NOT NULL DEFAULT 'local',
			schema_version INTEGER NOT NULL,
			interrupted BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE TABLE IF NOT EXISTS measurements (
			id SERIAL PRIMARY KEY,
			experiment_id TEXT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
			phase TEXT NOT NULL,
			task_name TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			status TEXT NOT NULL,
			exit_code INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ NOT NULL,
			duration DOUBLE PRECISION NOT NULL,
			cpu_energy DOUBLE PRECISION NOT NULL,
			ram_energy DOUBLE PRECISION NOT NULL,
			energy_consumed DOUBLE PRECISION NOT NULL,
			emissions DOUBLE PRECISION NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_experiment ON measurements(experiment_id, phase);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
