package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. HBENCH_HERWIG_EVENTS.
const EnvPrefix = "HBENCH"

// Load initializes the configuration from file and environment variables.
func Load(cfgFile string) {
	// .env is optional
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Warning: failed to read config file %s: %v\n", cfgFile, err)
	}
}

// SetDefaults registers the default value of every known key.
func SetDefaults() {
	viper.SetDefault("verbose", false)
	viper.SetDefault("log_file", "")

	viper.SetDefault("experiment.project", "Herwig")
	viper.SetDefault("experiment.runs", 10)
	viper.SetDefault("experiment.warmup", 0)
	viper.SetDefault("experiment.delay", 2*time.Second)
	viper.SetDefault("experiment.failure_policy", "record")
	viper.SetDefault("experiment.phase_timeout", time.Duration(0))

	viper.SetDefault("herwig.binary", "Herwig")
	viper.SetDefault("herwig.run_dir", ".")
	viper.SetDefault("herwig.input", "LHC-Matchbox.in")
	viper.SetDefault("herwig.events", 2000)
	viper.SetDefault("herwig.jobs", 1)

	viper.SetDefault("executor.type", "local")
	viper.SetDefault("executor.docker.image", "herwigcollaboration/herwig-7.3:7.3.0")
	viper.SetDefault("executor.docker.platform", "")
	viper.SetDefault("executor.docker.workdir", "/herwig-run")

	viper.SetDefault("energy.cpu_meter", "auto")
	viper.SetDefault("energy.rapl_path", "/sys/class/powercap")
	viper.SetDefault("energy.cpu_tdp_watts", 85.0)
	viper.SetDefault("energy.ram_watts_per_gb", 0.375)
	viper.SetDefault("energy.carbon_intensity", 0.475)

	viper.SetDefault("report.dir", ".")
	viper.SetDefault("report.prefix", "")
	viper.SetDefault("report.integration_file", "")
	viper.SetDefault("report.generation_file", "")

	viper.SetDefault("store.type", "sqlite")
	viper.SetDefault("store.dsn", ".herwig-bench.db")

	viper.SetDefault("metrics.addr", "")

	viper.SetDefault("mqtt.broker", "")
	viper.SetDefault("mqtt.topic", "herwig-bench")
	viper.SetDefault("mqtt.client_id", "")

	slackEnabled := os.Getenv("SLACK_BOT_USER_TOKEN") != ""
	viper.SetDefault("notifications.slack.enabled", slackEnabled)
	viper.SetDefault("notifications.slack.channel", "#general")
	viper.SetDefault("notifications.slack.events.on_start", false)
	viper.SetDefault("notifications.slack.events.on_complete", true)
	viper.SetDefault("notifications.slack.events.on_interrupted", true)
	viper.SetDefault("notifications.slack.events.on_failure", true)
}
