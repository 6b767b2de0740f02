package model

import "time"

// Phase identifies which Herwig step a measurement belongs to.
type Phase string

const (
	PhaseIntegration Phase = "integration"
	PhaseGeneration  Phase = "generation"
)

// Phases lists every phase in execution order.
var Phases = []Phase{PhaseIntegration, PhaseGeneration}

// Status of a measured phase.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// PhaseMeasurement is one measured phase of one iteration. Energies are in
// kWh, emissions in kg CO2eq.
type PhaseMeasurement struct {
	Phase          Phase     `json:"phase"`
	TaskName       string    `json:"task_name"`
	Iteration      int       `json:"iteration"`
	Status         Status    `json:"status"`
	ExitCode       int       `json:"exit_code"`
	StartedAt      time.Time `json:"started_at"`
	Duration       float64   `json:"duration"`
	CPUEnergy      float64   `json:"cpu_energy"`
	RAMEnergy      float64   `json:"ram_energy"`
	EnergyConsumed float64   `json:"energy_consumed"`
	Emissions      float64   `json:"emissions"`
	Error          string    `json:"error,omitempty"`
}

// Failed reports whether the phase's subprocess did not succeed.
func (m PhaseMeasurement) Failed() bool {
	return m.Status == StatusFailed
}

// Experiment describes one invocation of the benchmark loop.
type Experiment struct {
	ID            string    `json:"id"`
	Project       string    `json:"project"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
	Runs          int       `json:"runs"`
	Warmup        int       `json:"warmup"`
	Events        int       `json:"events"`
	Jobs          int       `json:"jobs"`
	Input         string    `json:"input"`
	Executor      string    `json:"executor"`
	SchemaVersion int       `json:"schema_version"`
	Interrupted   bool      `json:"interrupted"`
}
