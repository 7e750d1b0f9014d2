// Package main is the entry point for korail-watch.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/windasol/korail-watch/internal/buildinfo"
	"github.com/windasol/korail-watch/internal/config"
	"github.com/windasol/korail-watch/internal/notify"
	"github.com/windasol/korail-watch/internal/railquery"
	"github.com/windasol/korail-watch/internal/telemetry"
	"github.com/windasol/korail-watch/internal/watch"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() == 0 {
		printUsage()
		return
	}

	switch flag.Arg(0) {
	case "watch":
		if flag.NArg() < 3 {
			fmt.Fprintln(os.Stderr, "usage: korail-watch watch <departure> <arrival> [YYYY-MM-DD] [HHMM-HHMM]")
			os.Exit(1)
		}
		runWatch(logger, *configPath, flag.Args()[1:])
	case "version":
		fmt.Println(buildinfo.String())
		for k, v := range buildinfo.BuildInfo() {
			fmt.Printf("  %-12s %s\n", k+":", v)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("korail-watch - adaptive Korail seat-availability monitor")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  watch    Monitor a route for seat availability")
	fmt.Println("  version  Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

// runWatch loads configuration, builds one monitoring session from the
// requested route, and runs it to completion or until interrupted.
func runWatch(logger *slog.Logger, configPath string, args []string) {
	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		logger.Warn("no config file found, using defaults", "error", err)
	}

	var cfg *config.Config
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			logger.Error("failed to load config", "path", cfgPath, "error", err)
			os.Exit(1)
		}
	} else {
		cfg = config.Default()
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	query, err := parseWatchArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logger.Info("korail-watch starting",
		"version", buildinfo.Version,
		"route", query.Summary(),
	)

	checker := railquery.NewClient(cfg.HTTP, logger.With("component", "railquery"))
	channels := buildChannels(cfg.Notification, logger)

	orch := watch.New(checker, cfg, channels, query.DepartureStation, query.ArrivalStation, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		orch.Stop()
		cancel()
	}()

	var telemetryPublisher *telemetry.Publisher
	if cfg.Telemetry.Enabled() {
		telemetryPublisher = telemetry.New(cfg.Telemetry, orch.Metrics(), logger.With("component", "telemetry"))
		go func() {
			if err := telemetryPublisher.Start(ctx); err != nil {
				logger.Warn("telemetry publisher stopped", "error", err)
			}
		}()
	}

	snap := orch.Run(ctx, query)

	if telemetryPublisher != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = telemetryPublisher.Stop(stopCtx)
		stopCancel()
	}

	logger.Info("session ended",
		"session_id", snap.SessionID,
		"requests", snap.RequestCount,
		"errors", snap.ErrorCount,
		"detections", snap.DetectionCount,
		"notifications", snap.NotificationCount,
		"duration_s", snap.SessionDuration,
	)
	fmt.Printf("session %s: %d requests, %d detections, %d notifications over %.0fs\n",
		snap.SessionID, snap.RequestCount, snap.DetectionCount, snap.NotificationCount, snap.SessionDuration)
}

// parseWatchArgs reads "<departure> <arrival> [date] [window]" from the
// watch subcommand's trailing arguments, applying sensible defaults:
// tomorrow's date and an all-day window.
func parseWatchArgs(args []string) (railquery.Query, error) {
	departure, arrival := args[0], args[1]

	date := time.Now().AddDate(0, 0, 1)
	windowStart := railquery.NewClock(0, 0)
	windowEnd := railquery.NewClock(23, 59)

	if len(args) > 2 {
		parsed, err := time.Parse("2006-01-02", args[2])
		if err != nil {
			return railquery.Query{}, fmt.Errorf("invalid date %q: %w", args[2], err)
		}
		date = parsed
	}

	if len(args) > 3 {
		start, end, err := parseWindow(args[3])
		if err != nil {
			return railquery.Query{}, err
		}
		windowStart, windowEnd = start, end
	}

	return railquery.NewQuery(departure, arrival, date, windowStart, windowEnd,
		railquery.ClassKTX, railquery.SeatGeneral, 1, time.Now())
}

// parseWindow parses a "HHMM-HHMM" time window, e.g. "0900-1200".
func parseWindow(s string) (railquery.Clock, railquery.Clock, error) {
	var startH, startM, endH, endM int
	if _, err := fmt.Sscanf(s, "%2d%2d-%2d%2d", &startH, &startM, &endH, &endM); err != nil {
		return 0, 0, fmt.Errorf("invalid window %q, expected HHMM-HHMM: %w", s, err)
	}
	return railquery.NewClock(startH, startM), railquery.NewClock(endH, endM), nil
}

// buildChannels constructs the enabled notification channels from
// config. Unknown channel names were already rejected by Validate.
func buildChannels(cfg config.NotificationConfig, logger *slog.Logger) []notify.Channel {
	channels := make([]notify.Channel, 0, len(cfg.Methods))
	for _, method := range cfg.Methods {
		switch method {
		case "desktop":
			channels = append(channels, notify.NewDesktopChannel(logger.With("channel", "desktop")))
		case "sound":
			channels = append(channels, notify.NewSoundChannel(logger.With("channel", "sound")))
		case "webhook":
			if cfg.WebhookURL == "" {
				logger.Warn("webhook notification method configured without a webhook_url, skipping")
				continue
			}
			channels = append(channels, notify.NewWebhookChannel(cfg.WebhookURL, logger.With("channel", "webhook")))
		}
	}
	return channels
}
