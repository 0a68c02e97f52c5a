package pipeline

import (
	"slices"
	"time"

	"airquality/internal/modules/airquality/types"
)

// Source identifies the file a dataset was built from.
type Source struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"modTime"`
	Size    int64     `json:"size"`
}

// Dataset is the immutable output of one pipeline run. Accessors return copies.
type Dataset struct {
	source  Source
	records []types.CleanedRecord
	daily   []types.DailyAggregate
	stats   Stats
}

// NewDataset aggregates records and wraps them with their provenance.
func NewDataset(src Source, records []types.CleanedRecord, stats Stats) *Dataset {
	return &Dataset{
		source:  src,
		records: records,
		daily:   Daily(records),
		stats:   stats,
	}
}

func (d *Dataset) Source() Source { return d.source }
func (d *Dataset) Stats() Stats   { return d.stats }
func (d *Dataset) Len() int       { return len(d.records) }

// Records returns the cleaned records in source order.
func (d *Dataset) Records() []types.CleanedRecord {
	return slices.Clone(d.records)
}

// Daily returns the daily aggregates in ascending date order.
func (d *Dataset) Daily() []types.DailyAggregate {
	return slices.Clone(d.daily)
}

// Span returns the first and last calendar date present. ok is false for an empty dataset.
func (d *Dataset) Span() (first, last time.Time, ok bool) {
	if len(d.daily) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return d.daily[0].Date, d.daily[len(d.daily)-1].Date, true
}

// TimeRange returns the earliest and latest record timestamps.
func (d *Dataset) TimeRange() (first, last time.Time, ok bool) {
	if len(d.records) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = d.records[0].Timestamp, d.records[0].Timestamp
	for _, r := range d.records[1:] {
		if r.Timestamp.Before(first) {
			first = r.Timestamp
		}
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
	}
	return first, last, true
}

// DateRange bounds a filter by calendar date, inclusive. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) contains(t time.Time) bool {
	day := types.Day(t)
	if !r.From.IsZero() && day.Before(types.Day(r.From)) {
		return false
	}
	if !r.To.IsZero() && day.After(types.Day(r.To)) {
		return false
	}
	return true
}

// FilterRecords returns the records whose date falls in r, in source order.
func (d *Dataset) FilterRecords(r DateRange) []types.CleanedRecord {
	out := make([]types.CleanedRecord, 0, len(d.records))
	for _, rec := range d.records {
		if r.contains(rec.Timestamp) {
			out = append(out, rec)
		}
	}
	return out
}

// FilterDaily returns the aggregates whose date falls in r.
func (d *Dataset) FilterDaily(r DateRange) []types.DailyAggregate {
	out := make([]types.DailyAggregate, 0, len(d.daily))
	for _, agg := range d.daily {
		if r.contains(agg.Date) {
			out = append(out, agg)
		}
	}
	return out
}

// Head returns at most n records from the start of records.
func Head[T any](records []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(records) > n {
		return records[:n]
	}
	return records
}
