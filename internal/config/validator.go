package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var (
	failurePolicies = []string{"record", "skip"}
	executorTypes   = []string{"local", "docker"}
	cpuMeters       = []string{"auto", "rapl", "model"}
	storeTypes      = []string{"", "none", "sqlite", "sqlite3", "postgres", "postgresql"}
)

// ValidateConfig validates configuration values and returns an error if any are invalid.
// This function should be called after viper has loaded the configuration.
func ValidateConfig() error {
	var errors []string

	if runs := viper.GetInt("experiment.runs"); runs <= 0 {
		errors = append(errors, fmt.Sprintf("experiment.runs must be positive, got: %d", runs))
	}
	if warmup := viper.GetInt("experiment.warmup"); warmup < 0 {
		errors = append(errors, fmt.Sprintf("experiment.warmup must not be negative, got: %d", warmup))
	}
	if delay := viper.GetDuration("experiment.delay"); delay < 0 {
		errors = append(errors, fmt.Sprintf("experiment.delay must not be negative, got: %v", delay))
	}
	if timeout := viper.GetDuration("experiment.phase_timeout"); timeout < 0 {
		errors = append(errors, fmt.Sprintf("experiment.phase_timeout must not be negative, got: %v", timeout))
	}
	if p := viper.GetString("experiment.failure_policy"); !oneOf(p, failurePolicies) {
		errors = append(errors, fmt.Sprintf("experiment.failure_policy must be one of %s, got: %q", strings.Join(failurePolicies, ", "), p))
	}

	if viper.GetString("herwig.binary") == "" {
		errors = append(errors, "herwig.binary must be set")
	}
	if viper.GetString("herwig.input") == "" {
		errors = append(errors, "herwig.input must be set")
	}
	if events := viper.GetInt("herwig.events"); events <= 0 {
		errors = append(errors, fmt.Sprintf("herwig.events must be positive, got: %d", events))
	}
	if jobs := viper.GetInt("herwig.jobs"); jobs <= 0 {
		errors = append(errors, fmt.Sprintf("herwig.jobs must be positive, got: %d", jobs))
	}

	if t := viper.GetString("executor.type"); !oneOf(t, executorTypes) {
		errors = append(errors, fmt.Sprintf("executor.type must be one of %s, got: %q", strings.Join(executorTypes, ", "), t))
	} else if t == "docker" && viper.GetString("executor.docker.image") == "" {
		errors = append(errors, "executor.docker.image must be set for the docker executor")
	}

	if m := viper.GetString("energy.cpu_meter"); !oneOf(m, cpuMeters) {
		errors = append(errors, fmt.Sprintf("energy.cpu_meter must be one of %s, got: %q", strings.Join(cpuMeters, ", "), m))
	}
	if tdp := viper.GetFloat64("energy.cpu_tdp_watts"); tdp <= 0 {
		errors = append(errors, fmt.Sprintf("energy.cpu_tdp_watts must be positive, got: %v", tdp))
	}
	if w := viper.GetFloat64("energy.ram_watts_per_gb"); w < 0 {
		errors = append(errors, fmt.Sprintf("energy.ram_watts_per_gb must not be negative, got: %v", w))
	}
	if ci := viper.GetFloat64("energy.carbon_intensity"); ci < 0 {
		errors = append(errors, fmt.Sprintf("energy.carbon_intensity must not be negative, got: %v", ci))
	}

	if s := strings.ToLower(viper.GetString("store.type")); !oneOf(s, storeTypes) {
		errors = append(errors, fmt.Sprintf("store.type must be one of sqlite, postgres, none, got: %q", s))
	} else if (s == "postgres" || s == "postgresql") && viper.GetString("store.dsn") == "" {
		errors = append(errors, "store.dsn must be set for the postgres store")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(errors, "\n  "))
	}

	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
