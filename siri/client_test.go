package siri

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const stopBody = `{
	"ServiceDelivery": {
		"ResponseTimestamp": "2026-08-23T10:00:00Z",
		"StopMonitoringDelivery": {
			"ResponseTimestamp": "2026-08-23T10:00:00Z",
			"MonitoredStopVisit": [
				{
					"RecordedAtTime": "2026-08-23T09:59:30Z",
					"MonitoredVehicleJourney": {
						"LineRef": "N",
						"PublishedLineName": "N-Judah",
						"DirectionRef": "IB",
						"VehicleRef": "2012",
						"MonitoredCall": {
							"StopPointRef": "18031",
							"ExpectedArrivalTime": "2026-08-23T10:05:00Z"
						}
					}
				},
				{
					"RecordedAtTime": "2026-08-23T09:59:30Z",
					"MonitoredVehicleJourney": {
						"LineRef": "J",
						"DirectionRef": "OB",
						"VehicleRef": "2044",
						"MonitoredCall": {
							"StopPointRef": "18031",
							"AimedArrivalTime": "2026-08-23T10:12:00Z"
						}
					}
				}
			]
		}
	}
}`

// newTestClient points a client at a local fake server. Each test makes a
// single request, so the anti-burst limiter's initial token covers it.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("testkey", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestStopMonitoringSuccess(t *testing.T) {
	var gotPath atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		if r.URL.Query().Get("api_key") != "testkey" {
			t.Errorf("expected api_key param, got query %q", r.URL.RawQuery)
		}
		if r.URL.Query().Get("format") != "JSON" {
			t.Errorf("expected format=JSON, got query %q", r.URL.RawQuery)
		}
		if r.URL.Query().Get("agency") != "SF" {
			t.Errorf("expected agency=SF, got query %q", r.URL.RawQuery)
		}
		if r.URL.Query().Get("stopCode") != "18031" {
			t.Errorf("expected stopCode=18031, got query %q", r.URL.RawQuery)
		}
		w.Write([]byte(stopBody))
	})

	d, err := c.StopMonitoring(context.Background(), "SF", "18031")
	if err != nil {
		t.Fatalf("StopMonitoring failed: %v", err)
	}
	if gotPath.Load() != "/StopMonitoring" {
		t.Errorf("expected /StopMonitoring path, got %v", gotPath.Load())
	}
	if len(d.Visits) != 2 {
		t.Fatalf("expected 2 visits, got %d", len(d.Visits))
	}
	if d.Visits[0].Journey.LineRef != "N" {
		t.Errorf("expected first visit line N, got %q", d.Visits[0].Journey.LineRef)
	}
	if d.ResponseTimestamp.IsZero() {
		t.Error("expected ResponseTimestamp to be parsed")
	}
}

func TestStopMonitoringStripsBOM(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("\ufeff" + stopBody))
	})

	d, err := c.StopMonitoring(context.Background(), "SF", "18031")
	if err != nil {
		t.Fatalf("expected BOM-prefixed body to decode, got: %v", err)
	}
	if len(d.Visits) != 2 {
		t.Errorf("expected 2 visits, got %d", len(d.Visits))
	}
}

func TestStopMonitoringStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Kind
	}{
		{"too many requests", http.StatusTooManyRequests, KindRateLimit},
		{"unauthorized", http.StatusUnauthorized, KindAuth},
		{"forbidden", http.StatusForbidden, KindAuth},
		{"server error", http.StatusInternalServerError, KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := c.StopMonitoring(context.Background(), "SF", "18031")
			if err == nil {
				t.Fatalf("expected error for status %d, got nil", tt.status)
			}
			if got := KindOf(err); got != tt.want {
				t.Errorf("expected kind %q, got %q (%v)", tt.want, got, err)
			}
		})
	}
}

func TestStopMonitoringQuotaMessageInOKBody(t *testing.T) {
	// 511 reports quota exhaustion as plain text inside an HTTP 200.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("The allowed number of requests has been exceeded."))
	})

	_, err := c.StopMonitoring(context.Background(), "SF", "18031")
	if err == nil {
		t.Fatal("expected error for quota message, got nil")
	}
	if got := KindOf(err); got != KindRateLimit {
		t.Errorf("expected rate_limit kind, got %q (%v)", got, err)
	}
}

func TestStopMonitoringEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := c.StopMonitoring(context.Background(), "SF", "18031")
	if got := KindOf(err); got != KindEmpty {
		t.Errorf("expected empty kind, got %q (%v)", got, err)
	}
}

func TestStopMonitoringNonJSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway error</html>"))
	})

	_, err := c.StopMonitoring(context.Background(), "SF", "18031")
	if got := KindOf(err); got != KindDecode {
		t.Errorf("expected decode kind, got %q (%v)", got, err)
	}
}

func TestStopMonitoringTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(stopBody))
	})
	c.timeout = 50 * time.Millisecond

	_, err := c.StopMonitoring(context.Background(), "SF", "18031")
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if got := KindOf(err); got != KindNetwork {
		t.Errorf("expected network kind for timeout, got %q", got)
	}
}

func TestVehicleMonitoringParams(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/VehicleMonitoring" {
			t.Errorf("expected /VehicleMonitoring path, got %q", r.URL.Path)
		}
		if r.URL.Query().Get("vehicleID") != "2012" {
			t.Errorf("expected vehicleID=2012, got query %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"ServiceDelivery":{"VehicleMonitoringDelivery":{"VehicleActivity":[]}}}`))
	})

	d, err := c.VehicleMonitoring(context.Background(), "SF", "2012")
	if err != nil {
		t.Fatalf("VehicleMonitoring failed: %v", err)
	}
	if len(d.Visits) != 0 {
		t.Errorf("expected empty visits, got %d", len(d.Visits))
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 request, got %d", calls.Load())
	}
}
