package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens (or creates) the database at path and applies migrations
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// one writer at a time
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{sqlStore{db: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS experiments (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			runs INTEGER NOT NULL,
			warmup INTEGER NOT NULL DEFAULT 0,
			events INTEGER NOT NULL,
			jobs INTEGER NOT NULL,
			input TEXT NOT NULL,
			executor TEXT NOT NULL DEFAULT 'local',
			schema_version INTEGER NOT NULL,
			interrupted BOOLEAN NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS measurements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			experiment_id TEXT NOT NULL REFERENCES experiments(id),
			phase TEXT NOT NULL,
			task_name TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			status TEXT NOT NULL,
			exit_code INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			duration REAL NOT NULL,
			cpu_energy REAL NOT NULL,
			ram_energy REAL NOT NULL,
			energy_consumed REAL NOT NULL,
			emissions REAL NOT NULL,
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
