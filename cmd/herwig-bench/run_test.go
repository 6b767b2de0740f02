package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"herwigbench/internal/config"
	"herwigbench/internal/model"
	"herwigbench/internal/report"

	"github.com/AlecAivazis/survey/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HBENCH_STORE_TYPE", "none")
	t.Setenv("HBENCH_REPORT_PREFIX", "test")
	t.Setenv("SLACK_BOT_USER_TOKEN", "")
	return dir
}

func TestRunCmd_WritesReports(t *testing.T) {
	dir := runEnv(t)
	fe := &fakeExecutor{}
	withFakes(t, fe)

	out, err := executeCommand(rootCmd, "run", "--runs", "3", "--delay", "0s", "--events", "500", "--jobs", "2",
		"--run-dir", dir, "--report-dir", dir, "--yes")
	require.NoError(t, err, out)

	assert.Contains(t, out, "Benchmark summary")
	assert.Len(t, fe.calls, 6)
	assert.Equal(t, []string{"run", "LHC-Matchbox.run", "-N", "500", "-j", "2"}, fe.calls[1].Args)

	for _, phase := range model.Phases {
		path := filepath.Join(dir, report.FileName("test", phase, 500, 3))
		ms, err := report.ReadCSV(path)
		require.NoError(t, err)
		assert.Len(t, ms, 3)
		assert.InDelta(t, 0.011, ms[0].EnergyConsumed, 1e-12)
	}
}

func TestRunCmd_SkipPolicyDropsFailedRow(t *testing.T) {
	dir := runEnv(t)
	fe := &fakeExecutor{fail: func(n int) bool { return n == 4 }}
	withFakes(t, fe)

	_, err := executeCommand(rootCmd, "run", "--runs", "3", "--delay", "0s", "--failure-policy", "skip",
		"--run-dir", dir, "--report-dir", dir, "--yes")
	require.NoError(t, err)

	gen, err := report.ReadCSV(filepath.Join(dir, report.FileName("test", model.PhaseGeneration, 2000, 3)))
	require.NoError(t, err)
	assert.Len(t, gen, 2)
	integ, err := report.ReadCSV(filepath.Join(dir, report.FileName("test", model.PhaseIntegration, 2000, 3)))
	require.NoError(t, err)
	assert.Len(t, integ, 3)
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	runEnv(t)
	fe := &fakeExecutor{}
	withFakes(t, fe)

	_, err := executeCommand(rootCmd, "run", "--runs", "0", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "experiment.runs must be positive")
	assert.Empty(t, fe.calls)
}

func TestRunCmd_DeclinedOverwrite(t *testing.T) {
	dir := runEnv(t)
	fe := &fakeExecutor{}
	withFakes(t, fe)

	existing := filepath.Join(dir, report.FileName("test", model.PhaseIntegration, 2000, 1))
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0644))

	origAskOne := askOne
	defer func() { askOne = origAskOne }()
	asked := false
	askOne = func(p survey.Prompt, response interface{}, opts ...survey.AskOpt) error {
		asked = true
		*(response.(*bool)) = false
		return nil
	}

	out, err := executeCommand(rootCmd, "run", "--runs", "1", "--report-dir", dir, "--run-dir", dir)
	require.NoError(t, err)

	assert.True(t, asked)
	assert.Contains(t, out, "Aborted")
	assert.Empty(t, fe.calls)
	content, _ := os.ReadFile(existing)
	assert.Equal(t, "keep me", string(content))
}

func TestReportPaths(t *testing.T) {
	cfg := &config.Config{
		Experiment: config.Experiment{Runs: 10},
		Herwig:     config.Herwig{Events: 2000},
		Report:     config.Report{Dir: "out", GenerationFile: "/abs/gen.csv"},
	}
	paths := reportPaths(cfg, time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, filepath.Join("out", "20250804Int_report-2000evt-10runs.csv"), paths.Integration)
	assert.Equal(t, "/abs/gen.csv", paths.Generation)
}
