package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// StartMock511Server serves a minimal StopMonitoring/VehicleMonitoring
// lookalike on addr so the demo runs without a real API key. Arrival
// estimates drift on every request to make change notifications visible.
func StartMock511Server(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/StopMonitoring", serveStopMonitoring)
	mux.HandleFunc("/VehicleMonitoring", serveVehicleMonitoring)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("mock server failed", "error", err)
		}
	}()
}

func serveStopMonitoring(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	visit := func(line, direction string, minutes int) map[string]any {
		// jitter the estimate so consecutive polls differ
		eta := now.Add(time.Duration(minutes)*time.Minute + time.Duration(rand.Intn(90))*time.Second)
		return map[string]any{
			"RecordedAtTime": now.Format(time.RFC3339),
			"MonitoredVehicleJourney": map[string]any{
				"LineRef":           line,
				"PublishedLineName": line + "-Demo",
				"DirectionRef":      direction,
				"VehicleRef":        "20" + line,
				"MonitoredCall": map[string]any{
					"StopPointRef":        r.URL.Query().Get("stopCode"),
					"ExpectedArrivalTime": eta.Format(time.RFC3339),
				},
			},
		}
	}

	writeJSON(w, map[string]any{
		"ServiceDelivery": map[string]any{
			"ResponseTimestamp": now.Format(time.RFC3339),
			"StopMonitoringDelivery": map[string]any{
				"ResponseTimestamp": now.Format(time.RFC3339),
				"MonitoredStopVisit": []any{
					visit("N", "IB", 4),
					visit("N", "IB", 14),
					visit("J", "IB", 7),
					visit("N", "OB", 9),
				},
			},
		},
	})
}

func serveVehicleMonitoring(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	writeJSON(w, map[string]any{
		"ServiceDelivery": map[string]any{
			"ResponseTimestamp": now.Format(time.RFC3339),
			"VehicleMonitoringDelivery": map[string]any{
				"VehicleActivity": map[string]any{
					"RecordedAtTime": now.Format(time.RFC3339),
					"MonitoredVehicleJourney": map[string]any{
						"LineRef":    "N",
						"VehicleRef": r.URL.Query().Get("vehicleID"),
						"VehicleLocation": map[string]any{
							"Latitude":  "37.7601",
							"Longitude": "-122.5083",
						},
					},
				},
			},
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode mock response", "error", err)
	}
}
