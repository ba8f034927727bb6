package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/digineo/pingwatch/internal/logging"
	"github.com/digineo/pingwatch/monitor"
)

// Config represents the configuration of the monitor. It can be loaded
// from a YAML file and is overridden by command line flags.
type Config struct {
	Targets        []string      `yaml:"targets"`
	LogLevel       string        `yaml:"log_level"`
	Timeout        time.Duration `yaml:"timeout"`
	Bind4          string        `yaml:"bind4"`
	Bind6          string        `yaml:"bind6"`
	Privileged     bool          `yaml:"privileged"`
	PayloadSize    uint16        `yaml:"payload_size"`
	Mark           uint          `yaml:"mark"`
	ReportInterval time.Duration `yaml:"report_interval"`
	HistorySize    int           `yaml:"history_size"`
}

// Default returns the configuration used when neither a file nor flags
// say otherwise.
func Default() Config {
	return Config{
		LogLevel:    "info",
		Timeout:     monitor.DefaultTimeout,
		Bind4:       "0.0.0.0",
		Bind6:       "::",
		Privileged:  true,
		PayloadSize: 56,
		HistorySize: 10,
	}
}

// Load reads the configuration from a YAML file on top of the defaults.
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

// Validate checks the configuration and returns the parsed log level and
// targets. Any error is a fatal configuration error.
func (c *Config) Validate() (slog.Level, []monitor.Target, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return 0, nil, err
	}

	if len(c.Targets) == 0 {
		return 0, nil, errors.New("at least one target is required")
	}
	targets, err := monitor.ParseTargets(c.Targets)
	if err != nil {
		return 0, nil, err
	}

	if c.Timeout <= 0 {
		return 0, nil, errors.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.ReportInterval < 0 {
		return 0, nil, errors.Errorf("report interval must not be negative, got %s", c.ReportInterval)
	}
	if c.Bind4 == "" && c.Bind6 == "" {
		return 0, nil, errors.New("need at least one bind address")
	}

	return level, targets, nil
}

// Prober builds the ICMP prober described by the configuration.
func (c *Config) Prober() *monitor.ICMPProber {
	return &monitor.ICMPProber{
		Bind4:       c.Bind4,
		Bind6:       c.Bind6,
		Privileged:  c.Privileged,
		PayloadSize: c.PayloadSize,
		Mark:        c.Mark,
	}
}
