package export

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"airquality/internal/config"
	"airquality/internal/metrics"
	"airquality/internal/modules/airquality/pipeline"
	"airquality/internal/modules/airquality/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleBatch() Batch {
	d := func(day int) time.Time { return time.Date(2004, 3, day, 0, 0, 0, 0, time.UTC) }
	return Batch{
		RunID:       "run-1",
		Source:      pipeline.Source{Path: "/data/air.csv", ModTime: d(9)},
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Daily: []types.DailyAggregate{
			{Date: d(10), CO: 1.5, Benzene: 3, NOx: 15, NO2: 7.5, Temperature: 19, Humidity: 52.5, Count: 2},
			{Date: d(11), CO: 3, Benzene: 6, NOx: 30, NO2: 15, Temperature: 16, Humidity: 60, Count: 1},
		},
	}
}

func TestNewBatch(t *testing.T) {
	ds := pipeline.NewDataset(pipeline.Source{Path: "x.csv"}, []types.CleanedRecord{
		{Timestamp: time.Date(2004, 3, 10, 1, 0, 0, 0, time.UTC), CO: 1},
	}, pipeline.Stats{Rows: 1, Kept: 1})

	b := NewBatch("abc", ds, time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("x", 3600)))

	assert.Equal(t, "abc", b.RunID)
	assert.Equal(t, "x.csv", b.Source.Path)
	assert.Len(t, b.Daily, 1)
	assert.Equal(t, time.UTC, b.GeneratedAt.Location())
}

func TestCSVSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink := CSVSink{Dir: dir}

	require.NoError(t, sink.Write(context.Background(), sampleBatch()))

	raw, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,co,c6h6,nox,no2,temperature,humidity,count", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2004-03-10,1.5"), lines[1])
	assert.True(t, strings.HasSuffix(lines[1], ",2"), lines[1])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestCSVSink_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := CSVSink{Dir: t.TempDir()}.Write(ctx, sampleBatch())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestXLSXSink(t *testing.T) {
	sink := XLSXSink{Dir: t.TempDir()}

	require.NoError(t, sink.Write(context.Background(), sampleBatch()))

	f, err := excelize.OpenFile(sink.Path())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.Equal(t, []string{"Daily", "Run"}, f.GetSheetList())

	rows, err := f.GetRows("Daily")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Date", "CO (mg/m³)", "C6H6 (µg/m³)", "NOx (ppb)", "NO2 (ppb)", "Temperature (°C)", "Humidity (%)", "count"}, rows[0])
	assert.Equal(t, "2004-03-10", rows[1][0])
	assert.Equal(t, "1.50", rows[1][1])
	assert.Equal(t, "2", rows[1][7])

	runID, err := f.GetCellValue("Run", "B1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
	days, err := f.GetCellValue("Run", "B5")
	require.NoError(t, err)
	assert.Equal(t, "2", days)
}

func TestXLSXSink_Empty(t *testing.T) {
	sink := XLSXSink{Dir: t.TempDir()}

	require.NoError(t, sink.Write(context.Background(), Batch{RunID: "empty"}))

	f, err := excelize.OpenFile(sink.Path())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	rows, err := f.GetRows("Daily")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestSQLiteSink_UpsertsByDate(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	sink, err := NewSQLiteSink(ctx, conn, quietLogger())
	require.NoError(t, err)

	first := sampleBatch()
	require.NoError(t, sink.Write(ctx, first))

	second := sampleBatch()
	second.RunID = "run-2"
	second.Daily = second.Daily[1:]
	second.Daily[0].CO = 9
	require.NoError(t, sink.Write(ctx, second))

	var n int
	require.NoError(t, conn.QueryRow(`SELECT count(*) FROM daily_aggregates`).Scan(&n))
	assert.Equal(t, 2, n)

	var co float64
	var runID string
	var count int
	require.NoError(t, conn.QueryRow(`SELECT co, run_id, record_count FROM daily_aggregates WHERE date = '2004-03-11'`).Scan(&co, &runID, &count))
	assert.Equal(t, 9.0, co)
	assert.Equal(t, "run-2", runID)
	assert.Equal(t, 1, count)

	require.NoError(t, conn.QueryRow(`SELECT run_id FROM daily_aggregates WHERE date = '2004-03-10'`).Scan(&runID))
	assert.Equal(t, "run-1", runID)

	require.NoError(t, conn.QueryRow(`SELECT count(*) FROM export_runs`).Scan(&n))
	assert.Equal(t, 2, n)

	// Not owned: Close leaves the connection usable.
	require.NoError(t, sink.Close())
	assert.NoError(t, conn.Ping())
}

func TestSQLiteSink_DuplicateRunRollsBack(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	sink, err := NewSQLiteSink(ctx, conn, quietLogger())
	require.NoError(t, err)
	require.NoError(t, sink.Write(ctx, sampleBatch()))

	again := sampleBatch()
	again.Daily[0].CO = 42
	err = sink.Write(ctx, again)

	require.Error(t, err)
	var co float64
	require.NoError(t, conn.QueryRow(`SELECT co FROM daily_aggregates WHERE date = '2004-03-10'`).Scan(&co))
	assert.Equal(t, 1.5, co)
}

type fakeWriter struct {
	points []*write.Point
	err    error
}

func (f *fakeWriter) WritePoint(_ context.Context, p ...*write.Point) error {
	f.points = append(f.points, p...)
	return f.err
}

func TestInfluxSink(t *testing.T) {
	fw := &fakeWriter{}
	sink := &InfluxSink{writer: fw}

	require.NoError(t, sink.Write(context.Background(), sampleBatch()))

	require.Len(t, fw.points, 2)
	p := fw.points[0]
	assert.Equal(t, InfluxMeasurement, p.Name())
	assert.Equal(t, time.Date(2004, 3, 10, 0, 0, 0, 0, time.UTC), p.Time())
	require.Len(t, p.TagList(), 1)
	assert.Equal(t, "source", p.TagList()[0].Key)
	assert.Equal(t, "air.csv", p.TagList()[0].Value)

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, 1.5, fields["co"])
	assert.Equal(t, 52.5, fields["humidity"])
	assert.Equal(t, int64(2), fields["count"])
	assert.NoError(t, sink.Close())
}

func TestInfluxSink_EmptyAndError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("unauthorized")}
	sink := &InfluxSink{writer: fw}

	require.NoError(t, sink.Write(context.Background(), Batch{}))
	assert.Empty(t, fw.points)

	err := sink.Write(context.Background(), sampleBatch())
	assert.ErrorContains(t, err, "unauthorized")
}

type stubSink struct {
	name   string
	err    error
	got    []Batch
	closed bool
}

func (s *stubSink) Name() string { return s.name }
func (s *stubSink) Write(_ context.Context, b Batch) error {
	s.got = append(s.got, b)
	return s.err
}
func (s *stubSink) Close() error {
	s.closed = true
	return nil
}

func TestExporter_ContinuesPastFailures(t *testing.T) {
	m := metrics.New()
	bad := &stubSink{name: "bad", err: errors.New("disk full")}
	good := &stubSink{name: "good"}
	e := New(m, quietLogger(), bad, good)

	err := e.Export(context.Background(), sampleBatch())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad sink: disk full")
	assert.Len(t, good.got, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("bad", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("good", "ok")))

	require.NoError(t, e.Close())
	assert.True(t, bad.closed)
	assert.True(t, good.closed)
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		ExportDir:          filepath.Join(dir, "out"),
		ExportSinks:        []string{config.SinkCSV, config.SinkXLSX, config.SinkSQLite},
		SQLitePath:         filepath.Join(dir, "out", "air.db"),
		SQLiteMaxOpenConns: 1,
	}
	ctx := context.Background()

	sinks, err := FromConfig(ctx, cfg, quietLogger())
	require.NoError(t, err)

	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"csv", "xlsx", "sqlite"}, names)

	e := New(metrics.New(), quietLogger(), sinks...)
	require.NoError(t, e.Export(ctx, sampleBatch()))
	require.NoError(t, e.Close())

	assert.FileExists(t, filepath.Join(dir, "out", CSVFile))
	assert.FileExists(t, filepath.Join(dir, "out", XLSXFile))
	assert.FileExists(t, filepath.Join(dir, "out", "air.db"))
}

func TestFromConfig_UnknownSink(t *testing.T) {
	_, err := FromConfig(context.Background(), config.Config{ExportSinks: []string{"csv", "parquet"}}, quietLogger())
	assert.ErrorContains(t, err, "parquet")
}
