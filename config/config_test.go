package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseValidConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
api_key: testkey
poll_interval: 90s
hourly_budget: 30
metrics_port: 9090

stops:
  - operator: SF
    stop_code: "18031"
    line: N
    direction: IB
    interval: 45s
  - operator: SF
    stop_code: "15552"

vehicles:
  - operator: SF
    vehicle_id: "2012"
`))
	if err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}

	if cfg.APIKey != "testkey" {
		t.Errorf("expected api key testkey, got %q", cfg.APIKey)
	}
	if cfg.PollInterval.Duration() != 90*time.Second {
		t.Errorf("expected 90s poll interval, got %v", cfg.PollInterval.Duration())
	}
	if cfg.HourlyBudget != 30 {
		t.Errorf("expected budget 30, got %d", cfg.HourlyBudget)
	}
	if len(cfg.Stops) != 2 || len(cfg.Vehicles) != 1 {
		t.Fatalf("expected 2 stops and 1 vehicle, got %d and %d", len(cfg.Stops), len(cfg.Vehicles))
	}
	if cfg.Stops[0].Interval.Duration() != 45*time.Second {
		t.Errorf("expected 45s stop interval, got %v", cfg.Stops[0].Interval.Duration())
	}
	if cfg.Stops[1].Interval.Duration() != 0 {
		t.Errorf("expected unset stop interval to stay zero, got %v", cfg.Stops[1].Interval.Duration())
	}
}

func TestParseDefaultPollInterval(t *testing.T) {
	cfg, err := Parse([]byte(`
api_key: testkey
stops:
  - operator: SF
    stop_code: "18031"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PollInterval.Duration() != 60*time.Second {
		t.Errorf("expected 60s default, got %v", cfg.PollInterval.Duration())
	}
}

func TestParseEnvSubstitution(t *testing.T) {
	t.Setenv("TRANSIT_511_TEST_KEY", "from-env")

	cfg, err := Parse([]byte(`
api_key: ${TRANSIT_511_TEST_KEY}
stops:
  - operator: SF
    stop_code: "18031"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "from-env" {
		t.Errorf("expected env-substituted key, got %q", cfg.APIKey)
	}
}

func TestParseEnvSubstitutionDefault(t *testing.T) {
	os.Unsetenv("TRANSIT_511_UNSET_KEY")

	cfg, err := Parse([]byte(`
api_key: ${TRANSIT_511_UNSET_KEY:-fallback}
stops:
  - operator: SF
    stop_code: "18031"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "fallback" {
		t.Errorf("expected default value, got %q", cfg.APIKey)
	}
}

func TestParseEnvSubstitutionMissing(t *testing.T) {
	os.Unsetenv("TRANSIT_511_UNSET_KEY")

	_, err := Parse([]byte(`
api_key: ${TRANSIT_511_UNSET_KEY}
stops:
  - operator: SF
    stop_code: "18031"
`))
	if err == nil {
		t.Fatal("expected error for unset variable without default")
	}
	if !strings.Contains(err.Error(), "TRANSIT_511_UNSET_KEY") {
		t.Errorf("expected the variable name in the error, got: %v", err)
	}
}

func TestParseRejectsInvalidConfigs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing api key", `
stops:
  - operator: SF
    stop_code: "18031"
`},
		{"no watches", `
api_key: testkey
`},
		{"stop without operator", `
api_key: testkey
stops:
  - stop_code: "18031"
`},
		{"stop without code", `
api_key: testkey
stops:
  - operator: SF
`},
		{"bad direction", `
api_key: testkey
stops:
  - operator: SF
    stop_code: "18031"
    direction: NORTH
`},
		{"vehicle without id", `
api_key: testkey
vehicles:
  - operator: SF
`},
		{"bad duration", `
api_key: testkey
poll_interval: soon
stops:
  - operator: SF
    stop_code: "18031"
`},
		{"not yaml", `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected parse to fail")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api_key: testkey
stops:
  - operator: SF
    stop_code: "18031"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.Stops) != 1 {
		t.Errorf("expected 1 stop, got %d", len(cfg.Stops))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
