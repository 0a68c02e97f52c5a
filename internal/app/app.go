// Package app wires the pipeline to its adapters for each command.
package app

import (
	"log/slog"

	"airquality/internal/config"
	"airquality/internal/modules/airquality/pipeline"
)

// warnSentinelScope makes the non-default scope visible at startup. With it,
// temperature and humidity readings of -200 are kept as real values.
func warnSentinelScope(cfg config.Config, logger *slog.Logger) {
	if cfg.SentinelScope == pipeline.ScopePollutants {
		logger.Warn("sentinel replacement limited to pollutants, -200 temperature and humidity readings are kept",
			"sentinel_scope", cfg.SentinelScope)
	}
}

func loadDataset(cfg config.Config, logger *slog.Logger) (*pipeline.Dataset, error) {
	warnSentinelScope(cfg, logger)
	return pipeline.Load(cfg.DataPath, cfg.PipelineOptions(logger))
}
