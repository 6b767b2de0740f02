package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"herwigbench/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testExperiment(id string, started time.Time) *model.Experiment {
	return &model.Experiment{
		ID:            id,
		Project:       "Herwig",
		StartedAt:     started,
		Runs:          3,
		Events:        2000,
		Jobs:          4,
		Input:         "LHC-Matchbox.in",
		Executor:      "local",
		SchemaVersion: 1,
	}
}

func TestSQLiteStore_ExperimentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := setupSQLite(t)

	started := time.Date(2025, 8, 4, 9, 0, 0, 0, time.UTC)
	exp := testExperiment("exp-1", started)
	require.NoError(t, s.SaveExperiment(ctx, exp))

	got, err := s.GetExperiment(ctx, "exp-1")
	require.NoError(t, err)
	assert.Equal(t, "Herwig", got.Project)
	assert.True(t, got.StartedAt.Equal(started))
	assert.True(t, got.FinishedAt.IsZero())
	assert.False(t, got.Interrupted)

	exp.FinishedAt = started.Add(10 * time.Minute)
	exp.Interrupted = true
	require.NoError(t, s.FinishExperiment(ctx, exp))

	got, err = s.GetExperiment(ctx, "exp-1")
	require.NoError(t, err)
	assert.True(t, got.FinishedAt.Equal(exp.FinishedAt))
	assert.True(t, got.Interrupted)
}

func TestSQLiteStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := setupSQLite(t)

	_, err := s.GetExperiment(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.FinishExperiment(ctx, testExperiment("missing", time.Now()))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Measurements(t *testing.T) {
	ctx := context.Background()
	s := setupSQLite(t)
	require.NoError(t, s.SaveExperiment(ctx, testExperiment("exp-1", time.Now().UTC())))

	for i := 1; i <= 2; i++ {
		for _, phase := range model.Phases {
			m := model.PhaseMeasurement{
				Phase:          phase,
				TaskName:       "task",
				Iteration:      i,
				Status:         model.StatusOK,
				StartedAt:      time.Date(2025, 8, 4, 9, i, 0, 0, time.UTC),
				Duration:       12.5,
				CPUEnergy:      0.01,
				RAMEnergy:      0.001,
				EnergyConsumed: 0.011,
				Emissions:      0.011 * 0.475,
			}
			if i == 2 && phase == model.PhaseGeneration {
				m.Status = model.StatusFailed
				m.ExitCode = 1
				m.Error = "exit status 1"
			}
			require.NoError(t, s.SaveMeasurement(ctx, "exp-1", m))
		}
	}

	gen, err := s.LoadMeasurements(ctx, "exp-1", model.PhaseGeneration)
	require.NoError(t, err)
	require.Len(t, gen, 2)
	assert.Equal(t, 1, gen[0].Iteration)
	assert.Equal(t, model.PhaseGeneration, gen[0].Phase)
	assert.Equal(t, 12.5, gen[0].Duration)
	assert.True(t, gen[1].Failed())
	assert.Equal(t, "exit status 1", gen[1].Error)

	all, err := s.LoadMeasurements(ctx, "exp-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSQLiteStore_ListExperiments(t *testing.T) {
	ctx := context.Background()
	s := setupSQLite(t)

	base := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveExperiment(ctx, testExperiment(id, base.Add(time.Duration(i)*time.Hour))))
	}

	list, err := s.ListExperiments(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	s := setupSQLite(t)
	r := NewRecorder(s)

	exp := testExperiment("exp-r", time.Now().UTC())
	require.NoError(t, r.ExperimentStarted(ctx, exp))
	require.NoError(t, r.ObserveMeasurement(ctx, exp, model.PhaseMeasurement{
		Phase: model.PhaseIntegration, TaskName: "Integration Run 1", Iteration: 1, Status: model.StatusOK, StartedAt: time.Now(),
	}))
	exp.FinishedAt = time.Now().UTC()
	require.NoError(t, r.ExperimentFinished(ctx, exp))

	ms, err := s.LoadMeasurements(ctx, "exp-r", model.PhaseIntegration)
	require.NoError(t, err)
	assert.Len(t, ms, 1)
}
