package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"airquality/internal/config"
	"airquality/internal/db"
	"airquality/internal/db/migrate"
	"airquality/internal/export"
	"airquality/internal/metrics"
	"airquality/internal/modules/airquality/pipeline"
	"airquality/internal/modules/airquality/report"
	"airquality/internal/mqtt"
)

const mqttConnectTimeout = 5 * time.Second

// Report prints the daily table and the analysis of the source file to w.
func Report(cfg config.Config, w io.Writer, logger *slog.Logger) error {
	ds, err := loadDataset(cfg, logger)
	if err != nil {
		return err
	}
	return report.NewPrinter(w, language.English).Write(ds)
}

// Export writes the daily aggregates to every configured sink.
func Export(ctx context.Context, cfg config.Config, runID string, m *metrics.Metrics, logger *slog.Logger) error {
	ds, err := loadDataset(cfg, logger)
	if err != nil {
		return err
	}
	sinks, err := export.FromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	exporter := export.New(m, logger, sinks...)
	err = exporter.Export(ctx, export.NewBatch(runID, ds, time.Now()))
	return errors.Join(err, exporter.Close())
}

// Publish sends the daily aggregates to the MQTT broker as retained messages.
func Publish(ctx context.Context, cfg config.Config, runID string, m *metrics.Metrics, logger *slog.Logger) error {
	if cfg.MQTTBroker == "" {
		return errors.New("MQTT_BROKER is not set")
	}
	ds, err := loadDataset(cfg, logger)
	if err != nil {
		return err
	}

	publisher := mqtt.NewPublisher(cfg, logger)
	defer publisher.Disconnect()

	connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
	err = publisher.Connect(connectCtx)
	cancel()
	if err != nil {
		return err
	}

	err = publisher.Publish(ctx, publishBatch(runID, ds))
	m.Publishes.WithLabelValues(metrics.Result(err)).Inc()
	return err
}

func publishBatch(runID string, ds *pipeline.Dataset) mqtt.Batch {
	return mqtt.Batch{RunID: runID, Source: ds.Source().Path, Daily: ds.Daily()}
}

// Migrate applies pending migrations to the sqlite export database.
func Migrate(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	if err := migrate.Run(ctx, conn, logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	applied, err := migrate.Applied(ctx, conn)
	if err != nil {
		return err
	}
	logger.Info("database up to date", "path", cfg.SQLitePath, "migrations", len(applied))
	return nil
}
