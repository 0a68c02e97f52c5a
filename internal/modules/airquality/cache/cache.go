package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"airquality/internal/metrics"
	"airquality/internal/modules/airquality/pipeline"
)

// LoadFunc runs the pipeline over a file. pipeline.Load in production.
type LoadFunc func(path string, opts pipeline.Options) (*pipeline.Dataset, error)

// Store memoises the pipeline result for one source file. The entry is reused
// while the file's modification time and size are unchanged. Safe for
// concurrent use.
type Store struct {
	path    string
	opts    pipeline.Options
	load    LoadFunc
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu sync.RWMutex
	ds *pipeline.Dataset
}

func New(path string, opts pipeline.Options, m *metrics.Metrics, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	opts.Logger = logger
	return &Store{
		path:    path,
		opts:    opts,
		load:    pipeline.Load,
		logger:  logger,
		metrics: m,
	}
}

// WithLoader replaces the pipeline entry point, for tests.
func (s *Store) WithLoader(fn LoadFunc) *Store {
	s.load = fn
	return s
}

func (s *Store) Path() string { return s.path }

// Get returns the dataset for the current content of the file, running the
// pipeline only when the cached entry is missing or stale. Errors are not cached.
func (s *Store) Get() (*pipeline.Dataset, error) {
	info, statErr := os.Stat(s.path)

	s.mu.RLock()
	ds := s.ds
	s.mu.RUnlock()
	if ds != nil && statErr == nil && fresh(ds, info) {
		s.metrics.CacheHits.Inc()
		return ds, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another reader may have reloaded while we waited.
	if s.ds != nil && statErr == nil && fresh(s.ds, info) {
		s.metrics.CacheHits.Inc()
		return s.ds, nil
	}

	ds, err := s.load(s.path, s.opts)
	s.metrics.DatasetLoads.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		s.ds = nil
		return nil, err
	}
	s.ds = ds
	s.record(ds)
	return ds, nil
}

func fresh(ds *pipeline.Dataset, info os.FileInfo) bool {
	src := ds.Source()
	return src.ModTime.Equal(info.ModTime()) && src.Size == info.Size()
}

func (s *Store) record(ds *pipeline.Dataset) {
	st := ds.Stats()
	s.metrics.DatasetRecords.Set(float64(ds.Len()))
	s.metrics.DatasetDays.Set(float64(len(ds.Daily())))
	s.metrics.RowsDropped.WithLabelValues("invalid_timestamp").Set(float64(st.InvalidTimestamps))
	s.metrics.RowsDropped.WithLabelValues("incomplete").Set(float64(st.Incomplete))
}

// Invalidate drops the cached dataset. The next Get re-runs the pipeline.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.ds = nil
	s.mu.Unlock()
	s.metrics.CacheInvalidations.Inc()
}

// Cached reports whether a dataset is currently held.
func (s *Store) Cached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds != nil
}

// Watch invalidates the cache whenever the source file is written, created,
// renamed or removed. The parent directory is watched so editors that replace
// the file are noticed too. It blocks until ctx is done or the watcher fails.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			s.logger.Error("close watcher", "error", err)
		}
	}()

	target, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", s.path, err)
	}
	dir := filepath.Dir(target)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.logger.Info("watching source file", "path", target)

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&relevant == 0 {
				continue
			}
			s.logger.Info("source file changed, cache invalidated", "path", target, "op", ev.Op.String())
			s.Invalidate()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				s.logger.Warn("watcher overflow, cache invalidated", "path", target)
				s.Invalidate()
				continue
			}
			return fmt.Errorf("watch %s: %w", target, err)
		}
	}
}
