package energy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const joulesPerKWh = 3.6e6

// Meter accumulates the energy drawn by one hardware component between
// Begin and End. End returns kWh.
type Meter interface {
	Name() string
	Begin() error
	End(elapsed time.Duration) (float64, error)
}

// RAPLMeter reads the Intel RAPL package counters exposed by the powercap
// sysfs interface.
type RAPLMeter struct {
	domains []raplDomain
	start   []uint64
}

type raplDomain struct {
	name       string
	energyPath string
	maxRange   uint64
}

// NewRAPLMeter discovers the top-level package domains under root
// (usually /sys/class/powercap).
func NewRAPLMeter(root string) (*RAPLMeter, error) {
	dirs, err := filepath.Glob(filepath.Join(root, "intel-rapl:*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)

	var domains []raplDomain
	for _, dir := range dirs {
		// intel-rapl:0:1 style entries are sub-domains of a package
		if strings.Count(filepath.Base(dir), ":") != 1 {
			continue
		}
		name := readTrimmed(filepath.Join(dir, "name"))
		if name == "psys" {
			continue
		}
		energyPath := filepath.Join(dir, "energy_uj")
		if _, err := readUint(energyPath); err != nil {
			return nil, fmt.Errorf("rapl domain %s is not readable: %w", dir, err)
		}
		maxRange, err := readUint(filepath.Join(dir, "max_energy_range_uj"))
		if err != nil {
			maxRange = 0
		}
		domains = append(domains, raplDomain{name: name, energyPath: energyPath, maxRange: maxRange})
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("no rapl package domains found under %s", root)
	}
	return &RAPLMeter{domains: domains}, nil
}

func (r *RAPLMeter) Name() string { return "rapl" }

func (r *RAPLMeter) Begin() error {
	start, err := r.read()
	if err != nil {
		return err
	}
	r.start = start
	return nil
}

func (r *RAPLMeter) End(_ time.Duration) (float64, error) {
	if r.start == nil {
		return 0, fmt.Errorf("rapl meter was not started")
	}
	end, err := r.read()
	if err != nil {
		return 0, err
	}

	start := r.start
	r.start = nil

	var microJoules uint64
	for i, d := range r.domains {
		switch {
		case end[i] >= start[i]:
			microJoules += end[i] - start[i]
		case d.maxRange > start[i]:
			// counter wrapped
			microJoules += d.maxRange - start[i] + end[i]
		default:
			return 0, fmt.Errorf("rapl domain %s wrapped without a usable max_energy_range_uj", d.name)
		}
	}
	return float64(microJoules) / 1e6 / joulesPerKWh, nil
}

func (r *RAPLMeter) read() ([]uint64, error) {
	values := make([]uint64, len(r.domains))
	for i, d := range r.domains {
		v, err := readUint(d.energyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", d.energyPath, err)
		}
		values[i] = v
	}
	return values, nil
}

// ModelMeter estimates CPU energy from system-wide utilisation and the
// processor's thermal design power.
type ModelMeter struct {
	TDPWatts float64

	cpuTimes func() ([]cpu.TimesStat, error)
	start    *cpu.TimesStat
}

func NewModelMeter(tdpWatts float64) *ModelMeter {
	return &ModelMeter{
		TDPWatts: tdpWatts,
		cpuTimes: func() ([]cpu.TimesStat, error) { return cpu.Times(false) },
	}
}

func (m *ModelMeter) Name() string { return "model" }

func (m *ModelMeter) Begin() error {
	t, err := m.sample()
	if err != nil {
		return err
	}
	m.start = &t
	return nil
}

func (m *ModelMeter) End(elapsed time.Duration) (float64, error) {
	if m.start == nil {
		return 0, fmt.Errorf("model meter was not started")
	}
	end, err := m.sample()
	if err != nil {
		return 0, err
	}
	start := *m.start
	m.start = nil

	total := cpuTotal(end) - cpuTotal(start)
	if total <= 0 {
		return 0, nil
	}
	busy := total - ((end.Idle + end.Iowait) - (start.Idle + start.Iowait))
	util := clamp(busy/total, 0, 1)

	return m.TDPWatts * util * elapsed.Hours() / 1000, nil
}

func (m *ModelMeter) sample() (cpu.TimesStat, error) {
	times, err := m.cpuTimes()
	if err != nil {
		return cpu.TimesStat{}, fmt.Errorf("failed to read cpu times: %w", err)
	}
	if len(times) == 0 {
		return cpu.TimesStat{}, fmt.Errorf("no cpu times reported")
	}
	return times[0], nil
}

// RAMMeter charges a constant power per GB of installed memory.
type RAMMeter struct {
	WattsPerGB float64

	totalMemory func() (uint64, error)
	totalBytes  uint64
}

func NewRAMMeter(wattsPerGB float64) *RAMMeter {
	return &RAMMeter{
		WattsPerGB: wattsPerGB,
		totalMemory: func() (uint64, error) {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return 0, err
			}
			return vm.Total, nil
		},
	}
}

func (r *RAMMeter) Name() string { return "ram" }

func (r *RAMMeter) Begin() error {
	total, err := r.totalMemory()
	if err != nil {
		return fmt.Errorf("failed to read memory size: %w", err)
	}
	r.totalBytes = total
	return nil
}

func (r *RAMMeter) End(elapsed time.Duration) (float64, error) {
	gb := float64(r.totalBytes) / (1 << 30)
	watts := gb * r.WattsPerGB
	return watts * elapsed.Hours() / 1000, nil
}

func cpuTotal(t cpu.TimesStat) float64 {
	return t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq +
		t.Softirq + t.Steal
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readUint(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}
