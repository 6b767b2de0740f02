package report

import (
	"testing"

	"herwigbench/internal/model"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	ms := []model.PhaseMeasurement{
		{Status: model.StatusOK, Duration: 2, EnergyConsumed: 0.1},
		{Status: model.StatusOK, Duration: 4, EnergyConsumed: 0.3},
		{Status: model.StatusFailed, Duration: 100, EnergyConsumed: 5},
	}

	s := Summarize("Integration", ms)

	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 1, s.Failures)
	assert.InDelta(t, 3.0, s.Duration.Mean, 1e-9)
	assert.InDelta(t, 1.41421356, s.Duration.StdDev, 1e-6)
	assert.Equal(t, 2.0, s.Duration.Min)
	assert.Equal(t, 4.0, s.Duration.Max)
	assert.InDelta(t, 0.2, s.EnergyConsumed.Mean, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize("Generation", nil)
	assert.Zero(t, s.Count)
	assert.Equal(t, Stat{}, s.Duration)
}

func TestRenderTable(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	out := RenderTable([]Summary{
		Summarize("Integration", sample(model.PhaseIntegration, 3)),
		{Label: "Generation", Count: 3, Failures: 1},
	})

	assert.Contains(t, out, "Benchmark summary")
	assert.Contains(t, out, "REPORT")
	assert.Contains(t, out, "Integration")
	assert.Contains(t, out, "Generation: 1 of 3 phases failed")
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("Herwig", []Summary{Summarize("Generation", sample(model.PhaseGeneration, 2))})

	assert.Contains(t, out, "# Herwig")
	assert.Contains(t, out, "## Generation")
	assert.Contains(t, out, "2 phases recorded, 0 failed.")
	assert.Contains(t, out, "| Duration (s) | 2.25 |")
}
