package pipeline

import (
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"airquality/internal/modules/airquality/types"
)

// RecordsFrame exposes cleaned records as a table keyed by canonical field names.
func RecordsFrame(records []types.CleanedRecord) dataframe.DataFrame {
	stamps := make([]string, len(records))
	for i, r := range records {
		stamps[i] = r.Timestamp.Format(time.DateTime)
	}
	cols := []series.Series{series.New(stamps, series.String, string(types.FieldTimestamp))}
	for _, f := range types.Measurements {
		vals := make([]float64, len(records))
		for i, r := range records {
			vals[i] = r.Value(f)
		}
		cols = append(cols, series.New(vals, series.Float, string(f)))
	}
	return dataframe.New(cols...)
}

// DailyFrame exposes daily aggregates as a table keyed by canonical field names.
func DailyFrame(daily []types.DailyAggregate) dataframe.DataFrame {
	dates := make([]string, len(daily))
	counts := make([]int, len(daily))
	for i, d := range daily {
		dates[i] = d.DateString()
		counts[i] = d.Count
	}
	cols := []series.Series{series.New(dates, series.String, string(types.FieldDate))}
	for _, f := range types.Measurements {
		vals := make([]float64, len(daily))
		for i, d := range daily {
			vals[i] = d.Value(f)
		}
		cols = append(cols, series.New(vals, series.Float, string(f)))
	}
	cols = append(cols, series.New(counts, series.Int, "count"))
	return dataframe.New(cols...)
}

// RecordsFrame returns the full cleaned set as a table.
func (d *Dataset) RecordsFrame() dataframe.DataFrame {
	return RecordsFrame(d.records)
}

// DailyFrame returns the daily aggregates as a table.
func (d *Dataset) DailyFrame() dataframe.DataFrame {
	return DailyFrame(d.daily)
}
