// Package config provides YAML configuration parsing for the transit511
// CLI.
//
// This package enables running the coordinator as a standalone binary
// with a configuration file, as an alternative to the programmatic SDK
// approach.
//
// Example configuration:
//
//	api_key: ${TRANSIT_511_API_KEY}
//	poll_interval: 60s
//	metrics_port: 9090
//
//	stops:
//	  - operator: SF
//	    stop_code: "18031"
//	    line: N
//	    direction: IB
//	  - operator: SF
//	    stop_code: "18031"
//	    interval: 180s
//
//	vehicles:
//	  - operator: SF
//	    vehicle_id: "2012"
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file. Use [Load] or [Parse]
// to create one.
type Config struct {
	// APIKey is the 511.org credential. Supports environment variable
	// substitution: ${VAR} or ${VAR:-default}.
	APIKey string `yaml:"api_key" validate:"required"`

	// PollInterval is the default refresh interval for watches that do
	// not set their own. Defaults to 60s. Per-subscriber intervals are
	// clamped to [30s, 300s] by the library.
	PollInterval Duration `yaml:"poll_interval"`

	// HourlyBudget overrides the per-credential request ceiling.
	// Defaults to the 511.org budget of 60 requests per hour.
	HourlyBudget int `yaml:"hourly_budget" validate:"gte=0"`

	// MetricsPort exposes Prometheus metrics on the given port.
	// Zero disables the metrics listener.
	MetricsPort int `yaml:"metrics_port" validate:"gte=0,lte=65535"`

	// Stops lists the stop watches to register.
	Stops []StopWatch `yaml:"stops" validate:"dive"`

	// Vehicles lists the vehicle watches to register.
	Vehicles []VehicleWatch `yaml:"vehicles" validate:"dive"`
}

// StopWatch configures one stop subscription.
type StopWatch struct {
	// Operator is the 511 agency code, e.g. "SF".
	Operator string `yaml:"operator" validate:"required"`

	// StopCode identifies the stop within the operator.
	StopCode string `yaml:"stop_code" validate:"required"`

	// Line restricts the view to one line (LineRef). Empty watches all
	// lines. Watches for the same stop share one poller regardless.
	Line string `yaml:"line"`

	// Direction restricts the view to "IB" or "OB". Empty watches both.
	Direction string `yaml:"direction" validate:"omitempty,oneof=IB OB ib ob"`

	// Interval is this watch's requested refresh interval. Zero uses the
	// global poll_interval.
	Interval Duration `yaml:"interval"`
}

// VehicleWatch configures one vehicle subscription.
type VehicleWatch struct {
	// Operator is the 511 agency code.
	Operator string `yaml:"operator" validate:"required"`

	// VehicleID identifies the vehicle within the operator.
	VehicleID string `yaml:"vehicle_id" validate:"required"`

	// Interval is this watch's requested refresh interval. Zero uses the
	// global poll_interval.
	Interval Duration `yaml:"interval"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, expands environment variables in
// the API key, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(60 * time.Second)
	}

	expanded, err := expandEnvVars(cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("api_key: %w", err)
	}
	cfg.APIKey = expanded

	if len(cfg.Stops) == 0 && len(cfg.Vehicles) == 0 {
		return nil, fmt.Errorf("at least one stop or vehicle watch is required")
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
