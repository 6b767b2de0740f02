package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"herwigbench/internal/model"
)

// SchemaVersion identifies the column layout below. Bump it whenever
// Columns changes.
const SchemaVersion = 1

// Columns is the report header, in order.
var Columns = []string{
	"task_name",
	"duration",
	"emissions",
	"cpu_energy",
	"ram_energy",
	"energy_consumed",
	"status",
	"iteration",
	"started_at",
}

var (
	ErrEmpty     = errors.New("no measurements to write")
	ErrBadHeader = errors.New("unexpected report header")
)

// FileName builds the conventional report name, e.g.
// "20250804Int_report-2000evt-10runs.csv".
func FileName(prefix string, phase model.Phase, events, runs int) string {
	kind := "Int"
	if phase == model.PhaseGeneration {
		kind = "Gen"
	}
	return fmt.Sprintf("%s%s_report-%devt-%druns.csv", prefix, kind, events, runs)
}

// WriteCSV writes header plus one row per measurement to path. An empty
// slice returns ErrEmpty and creates nothing.
func WriteCSV(path string, ms []model.PhaseMeasurement) (err error) {
	if len(ms) == 0 {
		return ErrEmpty
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return err
	}
	for _, m := range ms {
		if err := w.Write(record(m)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func record(m model.PhaseMeasurement) []string {
	started := ""
	if !m.StartedAt.IsZero() {
		started = m.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	return []string{
		m.TaskName,
		formatFloat(m.Duration),
		formatFloat(m.Emissions),
		formatFloat(m.CPUEnergy),
		formatFloat(m.RAMEnergy),
		formatFloat(m.EnergyConsumed),
		string(m.Status),
		strconv.Itoa(m.Iteration),
		started,
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ReadCSV parses a report written by WriteCSV. The phase is inferred from
// the task name.
func ReadCSV(path string) ([]model.PhaseMeasurement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Columns)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrBadHeader)
	}
	for i, col := range Columns {
		if rows[0][i] != col {
			return nil, fmt.Errorf("%s: column %d is %q, want %q: %w", path, i+1, rows[0][i], col, ErrBadHeader)
		}
	}

	out := make([]model.PhaseMeasurement, 0, len(rows)-1)
	for n, row := range rows[1:] {
		m, err := parseRecord(row)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, n+2, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func parseRecord(row []string) (model.PhaseMeasurement, error) {
	m := model.PhaseMeasurement{
		TaskName: row[0],
		Phase:    phaseOf(row[0]),
		Status:   model.Status(row[6]),
	}
	floats := []*float64{&m.Duration, &m.Emissions, &m.CPUEnergy, &m.RAMEnergy, &m.EnergyConsumed}
	for i, dst := range floats {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return m, fmt.Errorf("%s: %w", Columns[i+1], err)
		}
		*dst = v
	}
	it, err := strconv.Atoi(row[7])
	if err != nil {
		return m, fmt.Errorf("iteration: %w", err)
	}
	m.Iteration = it
	if row[8] != "" {
		t, err := time.Parse(time.RFC3339Nano, row[8])
		if err != nil {
			return m, fmt.Errorf("started_at: %w", err)
		}
		m.StartedAt = t
	}
	return m, nil
}

func phaseOf(taskName string) model.Phase {
	if strings.Contains(strings.ToLower(taskName), "generation") {
		return model.PhaseGeneration
	}
	return model.PhaseIntegration
}

// Paths names the two output files.
type Paths struct {
	Integration string
	Generation  string
}

// Save writes each non-empty sequence to its path. Empty sequences are
// logged and skipped. It returns the files actually written.
func Save(logger *slog.Logger, integration, generation []model.PhaseMeasurement, paths Paths) ([]string, error) {
	var written []string
	var errs []error
	for _, out := range []struct {
		label string
		ms    []model.PhaseMeasurement
		path  string
	}{
		{"integration", integration, paths.Integration},
		{"generation", generation, paths.Generation},
	} {
		if len(out.ms) == 0 {
			logger.Info("No measurements recorded, skipping report", "phase", out.label, "path", out.path)
			continue
		}
		if err := WriteCSV(out.path, out.ms); err != nil {
			errs = append(errs, fmt.Errorf("%s report: %w", out.label, err))
			continue
		}
		logger.Info("Report saved", "phase", out.label, "path", out.path, "rows", len(out.ms))
		written = append(written, out.path)
	}
	return written, errors.Join(errs...)
}
