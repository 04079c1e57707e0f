package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Seabmoby/transit511"
	"github.com/Seabmoby/transit511/config"
)

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// watchCmd starts the polling coordinator.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the configured stops and vehicles",
	Long: `Start the polling coordinator.

The coordinator will:
  - Load configuration from the specified YAML file
  - Register every configured stop and vehicle watch, sharing pollers
    across watches of the same physical resource
  - Stream filtered updates as structured log lines
  - Optionally expose Prometheus metrics (metrics_port in the config)

The coordinator runs until interrupted (Ctrl+C) or SIGTERM.

Example:
  transit511 watch -c config.yaml
  transit511 watch --config /etc/transit511/config.yaml`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = watchCmd.MarkFlagRequired("config")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"stops", len(cfg.Stops),
		"vehicles", len(cfg.Vehicles),
		"poll_interval", cfg.PollInterval.Duration().String(),
	)

	opts := []transit511.Option{
		transit511.WithAPIKey(cfg.APIKey),
		transit511.WithLogger(logger),
	}
	if cfg.HourlyBudget > 0 {
		opts = append(opts, transit511.WithHourlyBudget(cfg.HourlyBudget))
	}

	m, err := transit511.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}
	defer m.Close()

	for _, reg := range config.BuildRegistrations(cfg) {
		sub, err := m.Register(reg.Key, reg.Filter, reg.Interval)
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.Key, err)
		}
		key, filter := reg.Key, reg.Filter
		sub.OnChange(func(u transit511.Update) {
			logUpdate(logger, key, filter, u)
		})
	}

	logger.Info("advised minimum interval for current poller count",
		"min_safe_interval", m.MinSafeInterval().String(),
	)

	var metricsSrv *http.Server
	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler: mux,
		}
		go func() {
			logger.Info("metrics listener started", "port", cfg.MetricsPort)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// logUpdate renders one filtered update as a structured log line.
func logUpdate(logger *slog.Logger, key transit511.ResourceKey, filter transit511.Filter, u transit511.Update) {
	attrs := []any{
		"key", key.String(),
		"filter", filter.String(),
		"origin", string(u.Origin),
		"available", u.Available,
		"visits", len(u.Visits),
		"version", u.Version,
	}
	if u.Origin == transit511.OriginStale {
		attrs = append(attrs,
			"failure", string(u.Failure),
			"age", u.Age(time.Now()).String(),
		)
	}
	if mins := transit511.MinutesUntil(u.Visits, time.Now(), 3); len(mins) > 0 {
		attrs = append(attrs, "next_arrivals_min", mins)
	}
	logger.Info("update", attrs...)
}
