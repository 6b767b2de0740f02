package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"herwigbench/internal/model"
)

// sqlStore holds the queries shared by both backends. Queries are written
// with "?" placeholders and rebound for drivers that number them.
type sqlStore struct {
	db       *sql.DB
	numbered bool
}

func (s *sqlStore) bind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) SaveExperiment(ctx context.Context, exp *model.Experiment) error {
	query := s.bind(`INSERT INTO experiments
		(id, project, started_at, runs, warmup, events, jobs, input, executor, schema_version, interrupted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		exp.ID, exp.Project, exp.StartedAt.UTC(), exp.Runs, exp.Warmup, exp.Events, exp.Jobs,
		exp.Input, exp.Executor, exp.SchemaVersion, exp.Interrupted)
	if err != nil {
		return fmt.Errorf("failed to save experiment %s: %w", exp.ID, err)
	}
	return nil
}

func (s *sqlStore) FinishExperiment(ctx context.Context, exp *model.Experiment) error {
	query := s.bind(`UPDATE experiments SET finished_at = ?, interrupted = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, exp.FinishedAt.UTC(), exp.Interrupted, exp.ID)
	if err != nil {
		return fmt.Errorf("failed to finish experiment %s: %w", exp.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", exp.ID, ErrNotFound)
	}
	return nil
}

func (s *sqlStore) SaveMeasurement(ctx context.Context, experimentID string, m model.PhaseMeasurement) error {
	query := s.bind(`INSERT INTO measurements
		(experiment_id, phase, task_name, iteration, status, exit_code, started_at,
		 duration, cpu_energy, ram_energy, energy_consumed, emissions, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		experimentID, string(m.Phase), m.TaskName, m.Iteration, string(m.Status), m.ExitCode, m.StartedAt.UTC(),
		m.Duration, m.CPUEnergy, m.RAMEnergy, m.EnergyConsumed, m.Emissions, m.Error)
	if err != nil {
		return fmt.Errorf("failed to save measurement %q: %w", m.TaskName, err)
	}
	return nil
}

const experimentColumns = `id, project, started_at, finished_at, runs, warmup, events, jobs, input, executor, schema_version, interrupted`

func scanExperiment(row interface{ Scan(...any) error }) (model.Experiment, error) {
	var exp model.Experiment
	var finished sql.NullTime
	err := row.Scan(&exp.ID, &exp.Project, &exp.StartedAt, &finished, &exp.Runs, &exp.Warmup,
		&exp.Events, &exp.Jobs, &exp.Input, &exp.Executor, &exp.SchemaVersion, &exp.Interrupted)
	if finished.Valid {
		exp.FinishedAt = finished.Time
	}
	return exp, err
}

func (s *sqlStore) ListExperiments(ctx context.Context, limit int) ([]model.Experiment, error) {
	if limit <= 0 {
		limit = 20
	}
	query := s.bind(`SELECT ` + experimentColumns + ` FROM experiments ORDER BY started_at DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	return out, rows.Err()
}

func (s *sqlStore) GetExperiment(ctx context.Context, id string) (*model.Experiment, error) {
	query := s.bind(`SELECT ` + experimentColumns + ` FROM experiments WHERE id = ?`)
	exp, err := scanExperiment(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

func (s *sqlStore) LoadMeasurements(ctx context.Context, experimentID string, phase model.Phase) ([]model.PhaseMeasurement, error) {
	query := `SELECT phase, task_name, iteration, status, exit_code, started_at,
		duration, cpu_energy, ram_energy, energy_consumed, emissions, error
		FROM measurements WHERE experiment_id = ?`
	args := []any{experimentID}
	if phase != "" {
		query += ` AND phase = ?`
		args = append(args, string(phase))
	}
	query += ` ORDER BY iteration, id`

	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PhaseMeasurement
	for rows.Next() {
		var m model.PhaseMeasurement
		var ph, status string
		if err := rows.Scan(&ph, &m.TaskName, &m.Iteration, &status, &m.ExitCode, &m.StartedAt,
			&m.Duration, &m.CPUEnergy, &m.RAMEnergy, &m.EnergyConsumed, &m.Emissions, &m.Error); err != nil {
			return nil, err
		}
		m.Phase = model.Phase(ph)
		m.Status = model.Status(status)
		out = append(out, m)
	}
	return out, rows.Err()
}
