package report

import (
	"fmt"
	"math"
	"strings"

	"herwigbench/internal/model"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Stat is the spread of one field across a report's rows.
type Stat struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summary aggregates one phase sequence.
type Summary struct {
	Label          string
	Count          int
	Failures       int
	Duration       Stat
	CPUEnergy      Stat
	RAMEnergy      Stat
	EnergyConsumed Stat
	Emissions      Stat
}

// Summarize computes statistics over ms. Failed rows count towards
// Failures but are left out of the statistics.
func Summarize(label string, ms []model.PhaseMeasurement) Summary {
	s := Summary{Label: label, Count: len(ms)}
	var dur, cpu, ram, total, co2 []float64
	for _, m := range ms {
		if m.Failed() {
			s.Failures++
			continue
		}
		dur = append(dur, m.Duration)
		cpu = append(cpu, m.CPUEnergy)
		ram = append(ram, m.RAMEnergy)
		total = append(total, m.EnergyConsumed)
		co2 = append(co2, m.Emissions)
	}
	s.Duration = stat(dur)
	s.CPUEnergy = stat(cpu)
	s.RAMEnergy = stat(ram)
	s.EnergyConsumed = stat(total)
	s.Emissions = stat(co2)
	return s
}

func stat(xs []float64) Stat {
	if len(xs) == 0 {
		return Stat{}
	}
	st := Stat{Min: xs[0], Max: xs[0]}
	var sum float64
	for _, x := range xs {
		sum += x
		st.Min = math.Min(st.Min, x)
		st.Max = math.Max(st.Max, x)
	}
	st.Mean = sum / float64(len(xs))
	if len(xs) > 1 {
		var sq float64
		for _, x := range xs {
			d := x - st.Mean
			sq += d * d
		}
		st.StdDev = math.Sqrt(sq / float64(len(xs)-1))
	}
	return st
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// RenderTable draws summaries as a static table.
func RenderTable(summaries []Summary) string {
	columns := []table.Column{
		{Title: "REPORT", Width: 36},
		{Title: "RUNS", Width: 5},
		{Title: "FAILED", Width: 6},
		{Title: "DURATION (s)", Width: 18},
		{Title: "ENERGY (kWh)", Width: 22},
		{Title: "EMISSIONS (kg)", Width: 22},
	}

	rows := make([]table.Row, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, table.Row{
			s.Label,
			fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%d", s.Failures),
			fmt.Sprintf("%.2f ± %.2f", s.Duration.Mean, s.Duration.StdDev),
			fmt.Sprintf("%.3g ± %.2g", s.EnergyConsumed.Mean, s.EnergyConsumed.StdDev),
			fmt.Sprintf("%.3g ± %.2g", s.Emissions.Mean, s.Emissions.StdDev),
		})
	}

	st := table.DefaultStyles()
	st.Header = st.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	st.Selected = lipgloss.NewStyle()

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithStyles(st),
		table.WithHeight(len(rows)+2),
	)

	var b strings.Builder
	b.WriteString(headerStyle.Render("Benchmark summary"))
	b.WriteString("\n")
	b.WriteString(t.View())
	for _, s := range summaries {
		if s.Failures > 0 {
			b.WriteString("\n")
			b.WriteString(failStyle.Render(fmt.Sprintf("%s: %d of %d phases failed", s.Label, s.Failures, s.Count)))
		}
	}
	return b.String()
}

// RenderMarkdown formats summaries as a markdown document.
func RenderMarkdown(title string, summaries []Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	for _, s := range summaries {
		fmt.Fprintf(&b, "## %s\n\n", s.Label)
		fmt.Fprintf(&b, "%d phases recorded, %d failed.\n\n", s.Count, s.Failures)
		b.WriteString("| Metric | Mean | Std dev | Min | Max |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, row := range []struct {
			name string
			st   Stat
		}{
			{"Duration (s)", s.Duration},
			{"CPU energy (kWh)", s.CPUEnergy},
			{"RAM energy (kWh)", s.RAMEnergy},
			{"Energy consumed (kWh)", s.EnergyConsumed},
			{"Emissions (kg CO2eq)", s.Emissions},
		} {
			fmt.Fprintf(&b, "| %s | %.4g | %.4g | %.4g | %.4g |\n", row.name, row.st.Mean, row.st.StdDev, row.st.Min, row.st.Max)
		}
		b.WriteString("\n")
	}
	return b.String()
}
