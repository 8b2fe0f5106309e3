package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Version is set at build time.
var Version = "dev"

var (
	configPath   = flag.String("config", "", "config file (default: default.config or hmr.config.json in the working directory)")
	pollInterval = flag.Duration("poll", 0, "poll for changes at this interval instead of using filesystem notifications")
	tuiFlag      = flag.Bool("tui", false, "show a live reload dashboard")
	versionFlag  = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("hmr version %s\n", Version)
		os.Exit(0)
	}

	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting current directory: %v\n", err)
		os.Exit(1)
	}

	settings, source, err := LoadSettings(*configPath, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var sub Subscriber = FSNotify{}
	if *pollInterval > 0 {
		sub = Poller{Interval: *pollInterval}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if *tuiFlag {
		err = runDashboard(ctx, dir, source, settings, sub)
	} else {
		err = run(ctx, source, settings, sub)
	}
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run watches until ctx is cancelled, logging to the sink the settings
// describe.
func run(ctx context.Context, source string, settings *Settings, sub Subscriber) error {
	logger, closer, err := NewLogger(settings.Logging, os.Stdout, os.Stderr)
	if err != nil {
		return fmt.Errorf("%w: logging: %v", ErrConfigNotReadable, err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	logger.Info("loaded config", "source", source)

	r, err := NewReloader(settings, logger, nil)
	if err != nil {
		return err
	}
	return r.Watch(ctx, sub)
}
