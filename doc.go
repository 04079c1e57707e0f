// Package transit511 provides a shared polling coordinator for real-time
// transit data from the 511.org API.
//
// The API budget is 60 requests per hour per credential, so the central
// problem is not fetching — it is not fetching: any number of independent
// subscribers watching the same stop or vehicle must share a single fetch
// loop. The [Monitor] deduplicates polling by resource identity, enforces
// the shared hourly budget, backs off on failure while re-serving the
// last known good data tagged stale, and fans filtered views out to each
// subscriber.
//
// # Quick Start
//
//	m, err := transit511.New(transit511.WithAPIKey(os.Getenv("TRANSIT_511_API_KEY")))
//	if err != nil {
//	    slog.Error("failed to create monitor", "error", err)
//	    os.Exit(1)
//	}
//	defer m.Close()
//
//	sub, err := m.Register(
//	    transit511.StopKey("SF", "18031"),
//	    transit511.Filter{Line: "N"},
//	    60*time.Second,
//	)
//	if err != nil {
//	    slog.Error("failed to register", "error", err)
//	    os.Exit(1)
//	}
//	defer m.Unregister(sub)
//
//	sub.OnChange(func(u transit511.Update) {
//	    for _, mins := range transit511.MinutesUntil(u.Visits, time.Now(), 3) {
//	        fmt.Printf("arriving in %d min\n", mins)
//	    }
//	})
//
// # Sharing and intervals
//
// Registrations with equal [ResourceKey] values share one poller no
// matter how their filters differ; a stop watched by five subscribers
// still costs one request per tick. The shared poller runs at the minimum
// of its subscribers' requested intervals, clamped to
// [MinInterval, MaxInterval], recomputed whenever a subscription comes or
// goes.
//
// # Failure model
//
// Subscribers never see fetch errors. An [Update] is either live data or
// the retained last-known-good data tagged [OriginStale] with the failure
// kind and age attached; Update.Available flips once failures persist (or
// immediately when the credential is rejected) so consumers can mark
// themselves unavailable instead of presenting ever-staler arrivals.
//
// # Architecture
//
// The root package owns resource identity, the registry, subscriptions
// and filtering. The siri package is the HTTP client for the vendor API;
// internal/poller runs the per-key fetch loop with backoff; and
// internal/ratebudget accounts the rolling-hour request window. The CLI
// under cmd/transit511 wires a YAML config to the library and exposes
// Prometheus metrics.
package transit511
