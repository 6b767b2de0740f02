package energy

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"herwigbench/internal/config"
)

var (
	ErrTaskInProgress = errors.New("a measurement task is already running")
	ErrNoActiveTask   = errors.New("no measurement task is running")
)

// Measurement is what a closed measurement scope yields. Energies are in
// kWh, emissions in kg CO2eq.
type Measurement struct {
	TaskName       string
	StartedAt      time.Time
	Duration       time.Duration
	CPUEnergy      float64
	RAMEnergy      float64
	EnergyConsumed float64
	Emissions      float64
}

// Tracker brackets one task at a time with a start/stop measurement scope.
type Tracker struct {
	CPU             Meter
	RAM             Meter
	CarbonIntensity float64

	now    func() time.Time
	active *task
}

type task struct {
	name    string
	started time.Time
	cpuErr  error
	ramErr  error
}

func NewTracker(cpu, ram Meter, carbonIntensity float64) *Tracker {
	return &Tracker{
		CPU:             cpu,
		RAM:             ram,
		CarbonIntensity: carbonIntensity,
		now:             time.Now,
	}
}

// NewFromConfig picks the CPU meter named by cfg.CPUMeter. "auto" prefers
// RAPL and falls back to the utilisation model.
func NewFromConfig(cfg config.Energy) (*Tracker, error) {
	var cpu Meter
	switch cfg.CPUMeter {
	case "rapl":
		m, err := NewRAPLMeter(cfg.RAPLPath)
		if err != nil {
			return nil, err
		}
		cpu = m
	case "model":
		cpu = NewModelMeter(cfg.CPUTDPWatts)
	case "", "auto":
		m, err := NewRAPLMeter(cfg.RAPLPath)
		if err != nil {
			slog.Debug("rapl unavailable, using cpu utilisation model", "error", err)
			cpu = NewModelMeter(cfg.CPUTDPWatts)
		} else {
			cpu = m
		}
	default:
		return nil, fmt.Errorf("unknown cpu meter %q", cfg.CPUMeter)
	}
	slog.Info("Energy tracker ready", "cpu_meter", cpu.Name(), "carbon_intensity", cfg.CarbonIntensity)
	return NewTracker(cpu, NewRAMMeter(cfg.RAMWattsPerGB), cfg.CarbonIntensity), nil
}

// StartTask opens the measurement scope for name. Meter failures do not
// prevent the scope from opening; they are reported by StopTask.
func (t *Tracker) StartTask(name string) error {
	if t.active != nil {
		return ErrTaskInProgress
	}
	tk := &task{name: name}
	tk.cpuErr = t.CPU.Begin()
	tk.ramErr = t.RAM.Begin()
	tk.started = t.now()
	t.active = tk
	return nil
}

// StopTask closes the open scope. The returned Measurement always carries
// the task's duration; a component whose meter failed reads zero and the
// failure is returned as a non-nil error next to the measurement.
func (t *Tracker) StopTask() (Measurement, error) {
	tk := t.active
	if tk == nil {
		return Measurement{}, ErrNoActiveTask
	}
	t.active = nil

	elapsed := t.now().Sub(tk.started)
	m := Measurement{
		TaskName:  tk.name,
		StartedAt: tk.started,
		Duration:  elapsed,
	}

	var errs []error
	if tk.cpuErr != nil {
		errs = append(errs, fmt.Errorf("cpu meter: %w", tk.cpuErr))
	} else if kwh, err := t.CPU.End(elapsed); err != nil {
		errs = append(errs, fmt.Errorf("cpu meter: %w", err))
	} else {
		m.CPUEnergy = kwh
	}
	if tk.ramErr != nil {
		errs = append(errs, fmt.Errorf("ram meter: %w", tk.ramErr))
	} else if kwh, err := t.RAM.End(elapsed); err != nil {
		errs = append(errs, fmt.Errorf("ram meter: %w", err))
	} else {
		m.RAMEnergy = kwh
	}

	m.EnergyConsumed = m.CPUEnergy + m.RAMEnergy
	m.Emissions = m.EnergyConsumed * t.CarbonIntensity

	return m, errors.Join(errs...)
}

// Active reports whether a task is open.
func (t *Tracker) Active() bool {
	return t.active != nil
}
