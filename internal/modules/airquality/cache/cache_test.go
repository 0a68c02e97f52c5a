package cache

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airquality/internal/metrics"
	"airquality/internal/modules/airquality/pipeline"
)

const csvBody = "Date,Time,CO(GT),C6H6(GT),NOx(GT),NO2(GT),T,RH\n" +
	"10/03/2004,18.00.00,2.6,11.9,166,113,13.6,48.9\n"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T, path string) (*Store, *atomic.Int32, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	var calls atomic.Int32
	s := New(path, pipeline.Options{}, m, quietLogger()).WithLoader(func(p string, o pipeline.Options) (*pipeline.Dataset, error) {
		calls.Add(1)
		return pipeline.Load(p, o)
	})
	return s, &calls, m
}

func writeFile(t *testing.T, path, body string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestStore_ReusesUntilFileChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "air.csv")
	mod := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writeFile(t, path, csvBody, mod)
	s, calls, m := newStore(t, path)

	first, err := s.Get()
	require.NoError(t, err)
	second, err := s.Get()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatasetRecords))

	// Same size, newer modification time.
	writeFile(t, path, csvBody, mod.Add(time.Minute))
	third, err := s.Get()
	require.NoError(t, err)
	assert.NotSame(t, second, third)
	assert.Equal(t, int32(2), calls.Load())

	// Same modification time, different size.
	writeFile(t, path, csvBody+"11/03/2004,18.00.00,1,1,1,1,1,1\n", mod.Add(time.Minute))
	fourth, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, fourth.Len())
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DatasetLoads.WithLabelValues("ok")))
}

func TestStore_Invalidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "air.csv")
	writeFile(t, path, csvBody, time.Now())
	s, calls, m := newStore(t, path)

	_, err := s.Get()
	require.NoError(t, err)
	require.True(t, s.Cached())

	s.Invalidate()
	assert.False(t, s.Cached())

	_, err = s.Get()
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheInvalidations))
}

func TestStore_ErrorsAreNotCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "air.csv")
	s, calls, m := newStore(t, path)

	_, err := s.Get()
	require.ErrorIs(t, err, pipeline.ErrNotFound)
	_, err = s.Get()
	require.ErrorIs(t, err, pipeline.ErrNotFound)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DatasetLoads.WithLabelValues("error")))

	writeFile(t, path, csvBody, time.Now())
	ds, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
}

func TestStore_DeletedFileDropsEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "air.csv")
	writeFile(t, path, csvBody, time.Now())
	s, _, _ := newStore(t, path)

	_, err := s.Get()
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	_, err = s.Get()
	assert.ErrorIs(t, err, pipeline.ErrNotFound)
	assert.False(t, s.Cached())
}

func TestStore_ConcurrentReaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "air.csv")
	writeFile(t, path, csvBody, time.Now())
	s, calls, _ := newStore(t, path)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, err := s.Get()
			assert.NoError(t, err)
			assert.Equal(t, 1, ds.Len())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestStore_WatchInvalidatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "air.csv")
	writeFile(t, path, csvBody, time.Now())
	s, _, _ := newStore(t, path)

	_, err := s.Get()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.Cached())

	assert.Eventually(t, func() bool {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return false
		}
		_, _ = f.WriteString("\n")
		_ = f.Close()
		return !s.Cached()
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
