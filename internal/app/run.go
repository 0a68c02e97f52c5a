package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron"

	"airquality/internal/config"
	"airquality/internal/export"
	httpapi "airquality/internal/httpapi"
	"airquality/internal/metrics"
	airquality "airquality/internal/modules/airquality"
	"airquality/internal/modules/airquality/cache"
	"airquality/internal/modules/airquality/controller"
	"airquality/internal/modules/airquality/views"
	"airquality/internal/mqtt"
)

// Serve runs the dashboard until ctx is cancelled. When EXPORT_SCHEDULE is set
// the cached dataset is also exported and published on that schedule.
func Serve(ctx context.Context, cfg config.Config, m *metrics.Metrics, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dataPath", cfg.DataPath,
		"sentinelScope", cfg.SentinelScope,
		"watchData", cfg.WatchData,
		"exportSinks", cfg.ExportSinks,
		"exportSchedule", cfg.ExportSchedule,
		"mqttBroker", cfg.MQTTBroker,
		"mqttTopic", cfg.MQTTTopic,
	)
	warnSentinelScope(cfg, logger)

	if err := views.LoadTemplates(); err != nil {
		return err
	}

	store := cache.New(cfg.DataPath, cfg.PipelineOptions(logger), m, logger)
	if _, err := store.Get(); err != nil {
		// Keep serving so /healthz can report the problem until the file appears.
		logger.Warn("initial dataset load failed", "path", cfg.DataPath, "error", err)
	}

	if cfg.WatchData {
		go func() {
			if err := store.Watch(ctx); err != nil {
				logger.Error("data watcher stopped", "error", err)
			}
		}()
	}

	if cfg.ExportSchedule != "" {
		job, err := newScheduledJob(ctx, cfg, store, m, logger)
		if err != nil {
			return err
		}
		defer job.close()

		scheduler := cron.New()
		if err := scheduler.AddFunc(cfg.ExportSchedule, func() { job.run(ctx) }); err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
		logger.Info("export scheduled", "schedule", cfg.ExportSchedule)
	}

	mux := httpapi.NewMux(store, m)
	airquality.RegisterFeature(mux, store)
	srv := httpapi.NewServer(cfg, mux, m, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err := <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// scheduledJob exports and publishes the cached dataset. Runs never overlap; a
// tick that fires while the previous run is busy is skipped.
type scheduledJob struct {
	data      controller.DatasetProvider
	exporter  *export.Exporter
	publisher *mqtt.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	mu        sync.Mutex
}

func newScheduledJob(ctx context.Context, cfg config.Config, store controller.DatasetProvider, m *metrics.Metrics, logger *slog.Logger) (*scheduledJob, error) {
	sinks, err := export.FromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	job := &scheduledJob{
		data:     store,
		exporter: export.New(m, logger, sinks...),
		metrics:  m,
		logger:   logger,
	}

	if cfg.MQTTBroker != "" {
		job.publisher = mqtt.NewPublisher(cfg, logger)
		connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
		err := job.publisher.Connect(connectCtx)
		cancel()
		if err != nil {
			// The client keeps retrying in the background; runs skip publishing until it is up.
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}
	return job, nil
}

func (j *scheduledJob) run(ctx context.Context) {
	if !j.mu.TryLock() {
		j.logger.Warn("previous scheduled export still running, skipping")
		return
	}
	defer j.mu.Unlock()

	runID := uuid.NewString()
	logger := j.logger.With("run_id", runID)
	ds, err := j.data.Get()
	if err != nil {
		logger.Error("scheduled export: dataset unavailable", "error", err)
		return
	}

	if err := j.exporter.Export(ctx, export.NewBatch(runID, ds, time.Now())); err != nil {
		logger.Error("scheduled export failed", "error", err)
	}

	if j.publisher == nil {
		return
	}
	if !j.publisher.IsConnected() {
		logger.Warn("mqtt not connected, publish skipped")
		j.metrics.Publishes.WithLabelValues("skipped").Inc()
		return
	}
	err = j.publisher.Publish(ctx, publishBatch(runID, ds))
	j.metrics.Publishes.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		logger.Error("scheduled publish failed", "error", err)
	}
}

func (j *scheduledJob) close() {
	if j.publisher != nil {
		j.publisher.Disconnect()
	}
	if err := j.exporter.Close(); err != nil {
		j.logger.Error("close export sinks", "error", err)
	}
}
