package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"herwigbench/internal/model"
	"herwigbench/internal/store"

	"github.com/AlecAivazis/survey/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedHistory(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "history.db")
	t.Setenv("HBENCH_STORE_TYPE", "sqlite")
	t.Setenv("HBENCH_STORE_DSN", dsn)

	st, err := store.NewSQLiteStore(dsn)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	start := time.Date(2025, 8, 4, 9, 0, 0, 0, time.UTC)
	exp := &model.Experiment{
		ID: "5b1f6c1e-0000-4000-8000-000000000001", Project: "Herwig", StartedAt: start,
		Runs: 2, Events: 2000, Jobs: 1, Input: "LHC-Matchbox.in", Executor: "local", SchemaVersion: 1,
	}
	require.NoError(t, st.SaveExperiment(ctx, exp))
	for i := 1; i <= 2; i++ {
		for _, phase := range model.Phases {
			require.NoError(t, st.SaveMeasurement(ctx, exp.ID, model.PhaseMeasurement{
				Phase: phase, TaskName: "t", Iteration: i, Status: model.StatusOK, StartedAt: start, Duration: 5,
			}))
		}
	}
	exp.FinishedAt = start.Add(time.Minute)
	require.NoError(t, st.FinishExperiment(ctx, exp))
	return exp.ID
}

func TestHistoryCmd_List(t *testing.T) {
	id := seedHistory(t)
	origInteractive := isInteractive
	isInteractive = func() bool { return false }
	defer func() { isInteractive = origInteractive }()

	out, err := executeCommand(rootCmd, "history")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "complete")
}

func TestHistoryCmd_Show(t *testing.T) {
	id := seedHistory(t)

	out, err := executeCommand(rootCmd, "history", id)
	require.NoError(t, err)
	assert.Regexp(t, `Experiment:\s+`+id, out)
	assert.Regexp(t, `Duration:\s+1m0s`, out)
	assert.Contains(t, out, "Integration")
}

func TestHistoryCmd_Select(t *testing.T) {
	id := seedHistory(t)
	origInteractive, origAskOne := isInteractive, askOne
	defer func() { isInteractive, askOne = origInteractive, origAskOne }()
	isInteractive = func() bool { return true }
	askOne = func(p survey.Prompt, response interface{}, opts ...survey.AskOpt) error {
		sel := p.(*survey.Select)
		*(response.(*string)) = sel.Options[0]
		return nil
	}

	out, err := executeCommand(rootCmd, "history")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "Benchmark summary")
}

func TestHistoryCmd_Disabled(t *testing.T) {
	t.Setenv("HBENCH_STORE_TYPE", "none")
	_, err := executeCommand(rootCmd, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history is disabled")
}

func TestHistoryCmd_UnknownID(t *testing.T) {
	seedHistory(t)
	_, err := executeCommand(rootCmd, "history", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
