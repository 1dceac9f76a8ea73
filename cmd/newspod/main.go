package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAMK-online/NewsPod/internal/app"
	"github.com/SAMK-online/NewsPod/internal/config"
	"github.com/SAMK-online/NewsPod/internal/infrastructure/scheduler"
	"github.com/SAMK-online/NewsPod/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("newspod", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the YAML config (default $NEWSPOD_CONFIG)")
	window := fs.Duration("window", 0, "how far back to read the inbox, e.g. 24h")
	outDir := fs.String("out", "", "directory for the report files")
	verbose := fs.Bool("v", false, "debug logging")
	every := fs.Duration("every", 0, "keep running and repeat at this interval, e.g. 24h")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: newspod [-config path] [-window 24h] [-out dir] [-v] [-every 24h]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load(*configPath)
	if *window > 0 {
		cfg.Inbox.Window = *window
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("application setup failed")
		return 1
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn().Err(err).Msg("close application")
		}
	}()

	job := func(ctx context.Context, at time.Time) {
		report, err := application.Run(ctx, at)
		if err != nil {
			logger.Error().Err(err).Msg("run failed")
			return
		}
		logger.Info().
			Int("stories", len(report.Stories)).
			Str("out", cfg.Output.Dir).
			Msg("newsletter report ready")
	}

	if *every > 0 {
		_ = scheduler.NewTicker(*every).Run(ctx, job)
		return 0
	}
	job(ctx, time.Now())
	return 0
}
