package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/classpulse/presence-monitor/internal/config"
	"github.com/classpulse/presence-monitor/internal/database"
	"github.com/classpulse/presence-monitor/internal/monitor"
	"github.com/classpulse/presence-monitor/internal/moodle"
	"github.com/classpulse/presence-monitor/internal/observability"
	"github.com/classpulse/presence-monitor/internal/report"
	"github.com/classpulse/presence-monitor/internal/repository"
	"github.com/classpulse/presence-monitor/internal/sheetlog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectMySQL(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	store, err := sheetlog.Open(ctx, cfg.CredentialsFile, cfg.SpreadsheetID, cfg.SheetName, logger)
	if err != nil {
		log.Fatalf("failed to open sheet log: %v", err)
	}

	client := moodle.NewClient(cfg.MoodleURL, cfg.MoodleToken, cfg.OnlineWindow, cfg.RequestTimeout, logger)
	directory := repository.NewDirectoryRepository(db, cfg.TablePrefix)
	reporter := report.New(os.Stdout, cfg.OnlineWindow)

	logger.Info().
		Str("endpoint", cfg.MoodleURL).
		Str("spreadsheet", cfg.SpreadsheetID).
		Str("sheet", cfg.SheetName).
		Dur("interval", cfg.PollInterval).
		Dur("window", cfg.OnlineWindow).
		Msg("moodle presence monitor starting, press Ctrl+C to stop")

	if cfg.MetricsAddr != "" {
		app := observability.NewMetricsApp()
		go func() {
			if err := app.Listen(cfg.MetricsAddr); err != nil {
				logger.Error().Err(err).Msg("metrics listener stopped")
			}
		}()
		defer func() {
			_ = app.Shutdown()
		}()
	}

	monitor.New(client, directory, store, reporter, cfg.PollInterval, logger).Run(ctx)

	logger.Info().Msg("stopped by user")
}
