package transit511

import (
	"context"
	"testing"
	"time"

	"github.com/Seabmoby/transit511/siri"
)

func TestClampInterval(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"zero uses default", 0, DefaultInterval},
		{"negative uses default", -time.Second, DefaultInterval},
		{"below floor clamps up", 5 * time.Second, MinInterval},
		{"at floor passes", MinInterval, MinInterval},
		{"in range passes", 90 * time.Second, 90 * time.Second},
		{"at ceiling passes", MaxInterval, MaxInterval},
		{"above ceiling clamps down", time.Hour, MaxInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampInterval(tt.in); got != tt.want {
				t.Errorf("clampInterval(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOptionValidation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"empty api key", WithAPIKey("")},
		{"nil fetcher", WithFetcher(nil)},
		{"empty credential id", WithCredentialID("")},
		{"nil logger", WithLogger(nil)},
		{"zero budget", WithHourlyBudget(0)},
		{"negative budget", WithHourlyBudget(-1)},
		{"zero backoff base", WithBackoff(0, time.Minute)},
		{"ceiling below base", WithBackoff(time.Minute, time.Second)},
		{"zero initial delay", WithInitialDelay(0)},
		{"zero unavailable threshold", WithUnavailableAfter(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opt(&monitorConfig{}); err == nil {
				t.Error("expected a validation error, got nil")
			}
		})
	}
}

func TestNewRequiresKeyOrFetcher(t *testing.T) {
	if _, err := New(); err == nil {
		t.Error("expected error when neither api key nor fetcher is given")
	}

	stub := fetcherFunc(func(ctx context.Context, key ResourceKey) (*siri.Delivery, error) {
		return &siri.Delivery{}, nil
	})
	m, err := New(WithFetcher(stub))
	if err != nil {
		t.Fatalf("expected fetcher-only construction to work: %v", err)
	}
	m.Close()

	m, err = New(WithAPIKey("testkey"))
	if err != nil {
		t.Fatalf("expected key-only construction to work: %v", err)
	}
	m.Close()
}
