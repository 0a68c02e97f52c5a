package controller

import (
	"path/filepath"
	"slices"

	"airquality/internal/modules/airquality/pipeline"
	"airquality/internal/modules/airquality/types"
	"airquality/internal/modules/airquality/views"
)

const timestampLayout = "2006-01-02 15:04"

func buildDashboard(ds *pipeline.Dataset, rng pipeline.DateRange, fields []types.Field) views.DashboardData {
	first, last, _ := ds.Span()
	records := ds.FilterRecords(rng)
	daily := ds.FilterDaily(rng)

	return views.DashboardData{
		Filter: views.Filter{
			From:    formatDate(rng.From),
			To:      formatDate(rng.To),
			MinDate: formatDate(first),
			MaxDate: formatDate(last),
		},
		Fields:      fieldOptions(fields),
		Summary:     buildSummary(ds),
		Daily:       buildDaily(daily, fields),
		Correlation: buildCorrelation(records),
		Preview:     buildPreview(records),
	}
}

func fieldOptions(selected []types.Field) []views.FieldOption {
	opts := make([]views.FieldOption, 0, len(types.Pollutants))
	for _, f := range types.Pollutants {
		opts = append(opts, views.FieldOption{
			Name:     string(f),
			Label:    f.Label(),
			Unit:     f.Unit(),
			Selected: slices.Contains(selected, f),
		})
	}
	return opts
}

func buildSummary(ds *pipeline.Dataset) views.SummaryData {
	stats := ds.Stats()
	s := views.SummaryData{
		Source:            filepath.Base(ds.Source().Path),
		Records:           ds.Len(),
		Days:              len(ds.Daily()),
		InvalidTimestamps: stats.InvalidTimestamps,
		Incomplete:        stats.Incomplete,
		Warnings:          stats.Warnings(),
	}
	if first, last, ok := ds.TimeRange(); ok {
		s.Period = first.Format(timestampLayout) + " to " + last.Format(timestampLayout)
	}
	return s
}

func measurementColumns() []views.Column {
	cols := make([]views.Column, len(types.Measurements))
	for i, f := range types.Measurements {
		cols[i] = views.Column{Label: f.Label(), Unit: f.Unit()}
	}
	return cols
}

// buildDaily renders every measurement in the table and charts only the selected fields.
func buildDaily(daily []types.DailyAggregate, charted []types.Field) views.DailyData {
	data := views.DailyData{Columns: measurementColumns()}
	if len(daily) == 0 {
		return data
	}

	data.Rows = make([]views.DailyRow, len(daily))
	for i, d := range daily {
		values := make([]string, len(types.Measurements))
		for j, f := range types.Measurements {
			values[j] = formatValue(d.Value(f))
		}
		data.Rows[i] = views.DailyRow{Date: d.DateString(), Values: values, Count: d.Count}
	}

	for _, f := range charted {
		points, lo, hi := chartPoints(daily, f)
		data.Charts = append(data.Charts, views.Chart{
			Label:  f.Label(),
			Unit:   f.Unit(),
			Points: points,
			Min:    formatValue(lo),
			Max:    formatValue(hi),
		})
	}
	return data
}

func buildCorrelation(records []types.CleanedRecord) views.CorrelationData {
	data := views.CorrelationData{Records: len(records)}
	if len(records) == 0 {
		return data
	}

	m := pipeline.Correlation(pipeline.RecordsFrame(records), types.Measurements...)
	data.Labels = make([]string, len(m.Fields))
	data.Rows = make([]views.CorrelationRow, len(m.Fields))
	for i, f := range m.Fields {
		data.Labels[i] = f.Label()
		cells := make([]views.CorrelationCell, len(m.Fields))
		for j := range m.Fields {
			v := m.Values[i][j]
			cells[j] = views.CorrelationCell{Text: formatValue(v), Class: correlationClass(v)}
		}
		data.Rows[i] = views.CorrelationRow{Label: f.Label(), Cells: cells}
	}
	return data
}

func buildPreview(records []types.CleanedRecord) views.PreviewData {
	data := views.PreviewData{Columns: measurementColumns()}
	for _, r := range pipeline.Head(records, previewRows) {
		values := make([]string, len(types.Measurements))
		for j, f := range types.Measurements {
			values[j] = formatValue(r.Value(f))
		}
		data.Rows = append(data.Rows, views.PreviewRow{
			Timestamp: r.Timestamp.Format(timestampLayout),
			Values:    values,
		})
	}
	return data
}
