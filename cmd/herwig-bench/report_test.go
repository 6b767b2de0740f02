package main

import (
	"path/filepath"
	"testing"

	"herwigbench/internal/model"
	"herwigbench/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeReport(t *testing.T, name string, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	var ms []model.PhaseMeasurement
	for i := 1; i <= n; i++ {
		ms = append(ms, model.PhaseMeasurement{
			TaskName: "Generation Run", Iteration: i, Status: model.StatusOK, Duration: float64(10 * i), EnergyConsumed: 0.01,
		})
	}
	require.NoError(t, report.WriteCSV(path, ms))
	return path
}

func TestReportCmd_Table(t *testing.T) {
	path := writeReport(t, "Gen_report-2000evt-3runs.csv", 3)

	out, err := executeCommand(rootCmd, "report", "--no-color", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Gen_report-2000evt-3runs.csv")
	assert.Contains(t, out, "20.00 ± 10.00")
}

func TestReportCmd_Markdown(t *testing.T) {
	path := writeReport(t, "gen.csv", 2)

	out, err := executeCommand(rootCmd, "report", "--markdown", "--no-color", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Herwig benchmark")
	assert.Contains(t, out, "gen.csv")
}

func TestReportCmd_MissingFile(t *testing.T) {
	_, err := executeCommand(rootCmd, "report", filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
