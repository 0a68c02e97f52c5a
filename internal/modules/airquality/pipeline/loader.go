package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"airquality/internal/modules/airquality/types"
)

const (
	// TimestampLayout matches "dd/mm/yyyy HH.MM.SS" after Date and Time are joined by a space.
	TimestampLayout = "2/1/2006 15.04.05"

	// Sentinel is the instrument's "no reading" code.
	Sentinel = -200.0
)

// Source column names as they appear in the CSV header.
const (
	ColDate        = "Date"
	ColTime        = "Time"
	ColCO          = "CO(GT)"
	ColBenzene     = "C6H6(GT)"
	ColNOx         = "NOx(GT)"
	ColNO2         = "NO2(GT)"
	ColTemperature = "T"
	ColHumidity    = "RH"
)

var measurementColumns = []struct {
	column string
	field  types.Field
}{
	{ColCO, types.FieldCO},
	{ColBenzene, types.FieldBenzene},
	{ColNOx, types.FieldNOx},
	{ColNO2, types.FieldNO2},
	{ColTemperature, types.FieldTemperature},
	{ColHumidity, types.FieldHumidity},
}

// SentinelScope selects which fields have the -200 code turned into a missing value.
type SentinelScope string

const (
	// ScopeAll applies sentinel replacement to all six measurements.
	ScopeAll SentinelScope = "all"
	// ScopePollutants only touches CO, C6H6, NOx and NO2. Temperature and humidity
	// readings of -200 then survive as real values.
	ScopePollutants SentinelScope = "pollutants"
)

// ParseSentinelScope validates a scope name.
func ParseSentinelScope(s string) (SentinelScope, error) {
	switch SentinelScope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeAll:
		return ScopeAll, nil
	case ScopePollutants:
		return ScopePollutants, nil
	default:
		return ScopeAll, fmt.Errorf("invalid sentinel scope %q (allowed: all, pollutants)", s)
	}
}

func (s SentinelScope) fields() []types.Field {
	if s == ScopePollutants {
		return types.Pollutants
	}
	return types.Measurements
}

// Options tune how the source file is read and cleaned.
type Options struct {
	Delimiter     rune
	SentinelScope SentinelScope
	Logger        *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.SentinelScope == "" {
		o.SentinelScope = ScopeAll
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// RawTable is the parsed but uncleaned content of a source file.
type RawTable struct {
	Records          []types.RawRecord
	UnparsableValues int
}

// Load reads, cleans and aggregates the CSV at path.
//
// A missing file fails with ErrNotFound before anything is parsed. A file that is
// not tabular in the expected shape fails with ErrMalformedInput. Rows with a bad
// timestamp or missing measurements are dropped and only counted.
func Load(path string, opts Options) (*Dataset, error) {
	opts = opts.withDefaults()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(path, err)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, malformed(path, "path is a directory")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			opts.Logger.Error("close input file", "path", path, "error", closeErr)
		}
	}()

	start := time.Now()
	raw, err := ReadRaw(f, path, opts.Delimiter)
	if err != nil {
		return nil, err
	}

	records, stats := Clean(raw.Records, opts)
	stats.UnparsableValues = raw.UnparsableValues
	if stats.UnparsableValues > 0 {
		opts.Logger.Warn("non-numeric measurement cells treated as missing", "cells", stats.UnparsableValues)
	}

	ds := NewDataset(Source{Path: path, ModTime: info.ModTime(), Size: info.Size()}, records, stats)
	opts.Logger.Info("dataset loaded",
		"path", path,
		"rows", stats.Rows,
		"kept", stats.Kept,
		"days", len(ds.Daily()),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ds, nil
}

// ReadRaw parses CSV text into raw records. name is only used in error messages.
func ReadRaw(r io.Reader, name string, delimiter rune) (RawTable, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return RawTable{}, malformed(name, "file is empty, expected a header row")
		}
		return RawTable{}, malformedCause(name, err, "unreadable header")
	}
	width := len(header)
	idx, err := indexColumns(header)
	if err != nil {
		return RawTable{}, malformedCause(name, err, "unexpected header")
	}

	var table RawTable
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return RawTable{}, malformedCause(name, err, "invalid CSV")
		}
		line, _ := cr.FieldPos(0)
		if len(row) > width {
			return RawTable{}, malformed(name, "line %d has %d fields, header has %d", line, len(row), width)
		}

		rec := types.RawRecord{
			Line: line,
			Date: cell(row, idx[ColDate]),
			Time: cell(row, idx[ColTime]),
		}
		for _, mc := range measurementColumns {
			v, ok := parseMeasurement(cell(row, idx[mc.column]))
			if !ok {
				table.UnparsableValues++
			}
			rec.SetValue(mc.field, v)
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

func indexColumns(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	required := []string{ColDate, ColTime}
	for _, mc := range measurementColumns {
		required = append(required, mc.column)
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}
	return idx, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// parseMeasurement returns nil for an empty or NaN cell. ok is false when the cell
// holds text that is not a finite number; the value is then missing as well.
func parseMeasurement(s string) (v *float64, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	if math.IsNaN(f) {
		return nil, true
	}
	if math.IsInf(f, 0) {
		return nil, false
	}
	return &f, true
}

// ParseTimestamp joins a Date and a Time cell with one space and parses the result.
func ParseTimestamp(date, clock string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, date+" "+clock, time.UTC)
}

// Clean applies timestamp parsing, sentinel replacement and the completeness filter
// in that order. Input order is preserved and raw is not modified.
func Clean(raw []types.RawRecord, opts Options) ([]types.CleanedRecord, Stats) {
	opts = opts.withDefaults()
	stats := Stats{Rows: len(raw)}
	sentinelFields := opts.SentinelScope.fields()

	out := make([]types.CleanedRecord, 0, len(raw))
	for _, r := range raw {
		ts, err := ParseTimestamp(r.Date, r.Time)
		if err != nil {
			stats.InvalidTimestamps++
			opts.Logger.Debug("timestamp rejected", "line", r.Line, "date", r.Date, "time", r.Time)
			continue
		}

		for _, f := range sentinelFields {
			if v := r.Value(f); v != nil && *v == Sentinel {
				r.SetValue(f, nil)
				stats.SentinelValues++
			}
		}

		rec, ok := complete(r, ts)
		if !ok {
			stats.Incomplete++
			continue
		}
		out = append(out, rec)
	}
	stats.Kept = len(out)

	for _, w := range stats.Warnings() {
		opts.Logger.Warn(w)
	}
	return out, stats
}

func complete(r types.RawRecord, ts time.Time) (types.CleanedRecord, bool) {
	for _, f := range types.Measurements {
		if r.Value(f) == nil {
			return types.CleanedRecord{}, false
		}
	}
	return types.CleanedRecord{
		Timestamp:   ts,
		CO:          *r.CO,
		Benzene:     *r.Benzene,
		NOx:         *r.NOx,
		NO2:         *r.NO2,
		Temperature: *r.Temperature,
		Humidity:    *r.Humidity,
	}, true
}
