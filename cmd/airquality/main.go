package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"airquality/internal/app"
	"airquality/internal/config"
	"airquality/internal/logging"
	"airquality/internal/metrics"
)

const appName = "airquality"

// Set with -ldflags "-X main.version=...".
var version = "dev"

const usage = `usage: airquality <command>

commands:
  report    print the daily averages table and analysis of DATA_PATH
  serve     run the dashboard on HTTP_ADDR
  export    write daily aggregates to EXPORT_SINKS
  publish   publish daily aggregates to the MQTT broker
  migrate   apply migrations to the sqlite export database
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	runID := uuid.NewString()
	logger := logging.New(cfg, version, appName).With("run_id", runID, "command", command)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	switch command {
	case "report":
		err = app.Report(cfg, os.Stdout, logger)
	case "serve":
		err = app.Serve(ctx, cfg, m, logger)
	case "export":
		err = app.Export(ctx, cfg, runID, m, logger)
	case "publish":
		err = app.Publish(ctx, cfg, runID, m, logger)
	case "migrate":
		err = app.Migrate(ctx, cfg, logger)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("command failed", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
	logger.Info("done")
}
