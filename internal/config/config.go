package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the typed view of the settings an experiment needs.
type Config struct {
	Verbose bool   `mapstructure:"verbose"`
	LogFile string `mapstructure:"log_file"`

	Experiment    Experiment    `mapstructure:"experiment"`
	Herwig        Herwig        `mapstructure:"herwig"`
	Executor      Executor      `mapstructure:"executor"`
	Energy        Energy        `mapstructure:"energy"`
	Report        Report        `mapstructure:"report"`
	Store         Store         `mapstructure:"store"`
	Metrics       Metrics       `mapstructure:"metrics"`
	MQTT          MQTT          `mapstructure:"mqtt"`
	Notifications Notifications `mapstructure:"notifications"`
}

type Experiment struct {
	Project       string        `mapstructure:"project"`
	Runs          int           `mapstructure:"runs"`
	Warmup        int           `mapstructure:"warmup"`
	Delay         time.Duration `mapstructure:"delay"`
	FailurePolicy string        `mapstructure:"failure_policy"`
	PhaseTimeout  time.Duration `mapstructure:"phase_timeout"`
}

// Herwig describes how the event generator is invoked.
type Herwig struct {
	Binary string `mapstructure:"binary"`
	RunDir string `mapstructure:"run_dir"`
	Input  string `mapstructure:"input"`
	Events int    `mapstructure:"events"`
	Jobs   int    `mapstructure:"jobs"`
}

type Executor struct {
	Type   string `mapstructure:"type"`
	Docker Docker `mapstructure:"docker"`
}

type Docker struct {
	Image    string `mapstructure:"image"`
	Platform string `mapstructure:"platform"`
	Workdir  string `mapstructure:"workdir"`
}

// Energy holds the constants of the measurement scope.
type Energy struct {
	CPUMeter        string  `mapstructure:"cpu_meter"`
	RAPLPath        string  `mapstructure:"rapl_path"`
	CPUTDPWatts     float64 `mapstructure:"cpu_tdp_watts"`
	RAMWattsPerGB   float64 `mapstructure:"ram_watts_per_gb"`
	CarbonIntensity float64 `mapstructure:"carbon_intensity"` // kg CO2eq per kWh
}

type Report struct {
	Dir             string `mapstructure:"dir"`
	Prefix          string `mapstructure:"prefix"`
	IntegrationFile string `mapstructure:"integration_file"`
	GenerationFile  string `mapstructure:"generation_file"`
}

type Store struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

type Metrics struct {
	Addr string `mapstructure:"addr"`
}

type MQTT struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
}

type Notifications struct {
	Slack Slack `mapstructure:"slack"`
}

type Slack struct {
	Enabled bool   `mapstructure:"enabled"`
	Channel string `mapstructure:"channel"`
}

// Get decodes the current viper state into a Config.
func Get() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TotalIterations is the number of full read+run cycles including warm-up.
func (e Experiment) TotalIterations() int {
	return e.Warmup + e.Runs
}
