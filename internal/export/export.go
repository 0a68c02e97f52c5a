// Package export writes daily aggregates to the configured artifact sinks.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"airquality/internal/metrics"
	"airquality/internal/modules/airquality/pipeline"
	"airquality/internal/modules/airquality/types"
)

// Batch is one export of a dataset's daily aggregates.
type Batch struct {
	RunID       string
	Source      pipeline.Source
	Daily       []types.DailyAggregate
	GeneratedAt time.Time
}

// NewBatch snapshots the daily aggregates of ds.
func NewBatch(runID string, ds *pipeline.Dataset, now time.Time) Batch {
	return Batch{
		RunID:       runID,
		Source:      ds.Source(),
		Daily:       ds.Daily(),
		GeneratedAt: now.UTC(),
	}
}

// Sink persists a batch somewhere.
type Sink interface {
	Name() string
	Write(ctx context.Context, b Batch) error
}

// Exporter fans a batch out to every sink.
type Exporter struct {
	sinks   []Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(m *metrics.Metrics, logger *slog.Logger, sinks ...Sink) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{sinks: sinks, metrics: m, logger: logger}
}

func (e *Exporter) Sinks() []Sink { return e.sinks }

// Export writes b to every sink. A failing sink does not stop the others; all
// failures are returned joined.
func (e *Exporter) Export(ctx context.Context, b Batch) error {
	var errs []error
	for _, s := range e.sinks {
		start := time.Now()
		err := s.Write(ctx, b)
		e.metrics.Exports.WithLabelValues(s.Name(), metrics.Result(err)).Inc()
		if err != nil {
			e.logger.Error("export failed", "sink", s.Name(), "run_id", b.RunID, "error", err)
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
			continue
		}
		e.logger.Info("export written",
			"sink", s.Name(),
			"run_id", b.RunID,
			"days", len(b.Daily),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return errors.Join(errs...)
}

// Close releases sinks that hold connections.
func (e *Exporter) Close() error {
	var errs []error
	for _, s := range e.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s sink: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// writeFileAtomic creates path through a temporary file in the same directory so
// readers never see a partial artifact.
func writeFileAtomic(path string, write func(f *os.File) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
