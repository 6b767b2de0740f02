package report

import "fmt"

// Comparison is the relative change of one summary against its baseline.
type Comparison struct {
	Label         string
	DurationDiff  float64 // Percentage change
	EnergyDiff    float64 // Percentage change
	EmissionsDiff float64 // Percentage change
	Prev          Summary
	Curr          Summary
}

// Compare pairs summaries by position and returns the change of each mean
// from prev to curr. Extra summaries on either side are ignored.
func Compare(prev, curr []Summary) []Comparison {
	n := min(len(prev), len(curr))
	comparisons := make([]Comparison, 0, n)
	for i := 0; i < n; i++ {
		p, c := prev[i], curr[i]
		comparisons = append(comparisons, Comparison{
			Label:         c.Label,
			DurationDiff:  percentChange(p.Duration.Mean, c.Duration.Mean),
			EnergyDiff:    percentChange(p.EnergyConsumed.Mean, c.EnergyConsumed.Mean),
			EmissionsDiff: percentChange(p.Emissions.Mean, c.Emissions.Mean),
			Prev:          p,
			Curr:          c,
		})
	}
	return comparisons
}

func percentChange(prev, curr float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (curr - prev) / prev * 100
}

// Regressed reports whether duration or energy grew by more than
// threshold percent.
func (c Comparison) Regressed(threshold float64) bool {
	return c.DurationDiff > threshold || c.EnergyDiff > threshold
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s: duration %+.2f%%, energy %+.2f%%, emissions %+.2f%%",
		c.Label, c.DurationDiff, c.EnergyDiff, c.EmissionsDiff)
}
