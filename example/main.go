package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Seabmoby/transit511"
	"github.com/Seabmoby/transit511/siri"
)

// localFetcher routes resource keys to a siri.Client pointed at the mock
// server (see mock_server.go). Production code would just pass
// transit511.WithAPIKey instead.
type localFetcher struct {
	client *siri.Client
}

func (f localFetcher) Fetch(ctx context.Context, key transit511.ResourceKey) (*siri.Delivery, error) {
	if key.Kind == transit511.KindVehicle {
		return f.client.VehicleMonitoring(ctx, key.Operator, key.Code)
	}
	return f.client.StopMonitoring(ctx, key.Operator, key.Code)
}

func main() {
	// start mock 511 server (see mock_server.go)
	StartMock511Server(":9999")
	time.Sleep(100 * time.Millisecond)

	fetcher := localFetcher{client: siri.NewClient("demo-key",
		siri.WithBaseURL("http://localhost:9999"),
	)}

	m, err := transit511.New(
		transit511.WithFetcher(fetcher),
		transit511.WithInitialDelay(5*time.Second),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	// Three watches on the same stop share one poller; the vehicle watch
	// gets its own. Two fetches per cycle, not four.
	nJudah, err := m.Register(transit511.StopKey("SF", "18031"),
		transit511.Filter{Line: "N", Direction: transit511.DirectionInbound},
		60*time.Second)
	if err != nil {
		slog.Error("failed to register", "error", err)
		os.Exit(1)
	}
	nJudah.OnChange(func(u transit511.Update) {
		mins := transit511.MinutesUntil(u.Visits, time.Now(), 2)
		fmt.Printf("[N inbound] v%d %s: next arrivals %v min\n", u.Version, u.Origin, mins)
	})

	allLines, _ := m.Register(transit511.StopKey("SF", "18031"), transit511.Filter{}, 120*time.Second)
	allLines.OnChange(func(u transit511.Update) {
		fmt.Printf("[all lines] v%d %s: %d visits\n", u.Version, u.Origin, len(u.Visits))
	})

	bus, _ := m.Register(transit511.VehicleKey("SF", "2012"), transit511.Filter{}, 60*time.Second)
	bus.OnChange(func(u transit511.Update) {
		fmt.Printf("[vehicle 2012] v%d %s: %d reports\n", u.Version, u.Origin, len(u.Visits))
	})

	fmt.Println()
	fmt.Println("  transit511 demo — three watches, two shared pollers")
	fmt.Printf("  advised minimum interval: %s\n", m.MinSafeInterval())
	fmt.Println("  Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	fmt.Println("shutting down")
}
