package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	prev := []Summary{
		{Label: "old-int", Duration: Stat{Mean: 100}, EnergyConsumed: Stat{Mean: 0.5}, Emissions: Stat{Mean: 0.2}},
		{Label: "old-gen", Duration: Stat{Mean: 200}},
	}
	curr := []Summary{
		{Label: "new-int", Duration: Stat{Mean: 110}, EnergyConsumed: Stat{Mean: 0.4}, Emissions: Stat{Mean: 0.19}},
	}

	comps := Compare(prev, curr)

	assert.Len(t, comps, 1)
	c := comps[0]
	assert.Equal(t, "new-int", c.Label)
	assert.InDelta(t, 10.0, c.DurationDiff, 0.01)
	assert.InDelta(t, -20.0, c.EnergyDiff, 0.01)
	assert.InDelta(t, -5.0, c.EmissionsDiff, 0.01)
	assert.True(t, c.Regressed(5))
	assert.False(t, c.Regressed(15))
	assert.Equal(t, "new-int: duration +10.00%, energy -20.00%, emissions -5.00%", c.String())
}

func TestCompare_ZeroBaseline(t *testing.T) {
	comps := Compare([]Summary{{}}, []Summary{{Duration: Stat{Mean: 3}}})
	assert.Zero(t, comps[0].DurationDiff)
}
