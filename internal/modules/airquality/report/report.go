package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"airquality/internal/modules/airquality/pipeline"
	"airquality/internal/modules/airquality/types"
)

// TableDays is how many daily rows the summary table shows.
const TableDays = 10

// Range is the extent of a series of daily means.
type Range struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Summary is the headline analysis of one dataset.
type Summary struct {
	Records     int            `json:"records"`
	Days        int            `json:"days"`
	From        time.Time      `json:"from"`
	To          time.Time      `json:"to"`
	CO          Range          `json:"co"`
	Benzene     Range          `json:"c6h6"`
	Temperature Range          `json:"temperature"`
	Humidity    Range          `json:"humidity"`
	NOxNO2      float64        `json:"-"`
	PeakCOHour  int            `json:"peakCoHour"`
	Stats       pipeline.Stats `json:"stats"`
}

// Empty reports a dataset with no cleaned records.
func (s Summary) Empty() bool { return s.Records == 0 }

// Summarize derives the analysis figures. Pollutant and climate ranges are taken
// over the daily means; the NOx/NO2 coefficient over the hourly records.
func Summarize(records []types.CleanedRecord, daily []types.DailyAggregate, stats pipeline.Stats) Summary {
	s := Summary{
		Records:    len(records),
		Days:       len(daily),
		NOxNO2:     math.NaN(),
		PeakCOHour: -1,
		Stats:      stats,
	}
	if len(records) == 0 {
		return s
	}

	s.From, s.To = records[0].Timestamp, records[0].Timestamp
	for _, r := range records[1:] {
		if r.Timestamp.Before(s.From) {
			s.From = r.Timestamp
		}
		if r.Timestamp.After(s.To) {
			s.To = r.Timestamp
		}
	}
	s.CO = dailyRange(daily, types.FieldCO)
	s.Benzene = dailyRange(daily, types.FieldBenzene)
	s.Temperature = dailyRange(daily, types.FieldTemperature)
	s.Humidity = dailyRange(daily, types.FieldHumidity)
	s.NOxNO2 = pipeline.Correlation(pipeline.RecordsFrame(records), types.FieldNOx, types.FieldNO2).
		At(types.FieldNOx, types.FieldNO2)
	s.PeakCOHour = peakHour(records, types.FieldCO)
	return s
}

// FromDataset is Summarize over a whole dataset.
func FromDataset(ds *pipeline.Dataset) Summary {
	return Summarize(ds.Records(), ds.Daily(), ds.Stats())
}

func dailyRange(daily []types.DailyAggregate, f types.Field) Range {
	if len(daily) == 0 {
		return Range{}
	}
	r := Range{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, d := range daily {
		v := d.Value(f)
		sum += v
		r.Min = math.Min(r.Min, v)
		r.Max = math.Max(r.Max, v)
	}
	r.Mean = sum / float64(len(daily))
	return r
}

// peakHour returns the hour of day with the highest mean value of f.
func peakHour(records []types.CleanedRecord, f types.Field) int {
	var sums [24]float64
	var counts [24]int
	for _, r := range records {
		h := r.Timestamp.Hour()
		sums[h] += r.Value(f)
		counts[h]++
	}
	best, bestMean := -1, math.Inf(-1)
	for h := range sums {
		if counts[h] == 0 {
			continue
		}
		if m := sums[h] / float64(counts[h]); m > bestMean {
			best, bestMean = h, m
		}
	}
	return best
}

// Printer writes the plain-text report. Numbers are formatted for its language.
type Printer struct {
	w io.Writer
	p *message.Printer
}

func NewPrinter(w io.Writer, tag language.Tag) *Printer {
	return &Printer{w: w, p: message.NewPrinter(tag)}
}

// Write prints the daily summary table followed by the analysis.
func (pr *Printer) Write(ds *pipeline.Dataset) error {
	if err := pr.Table(ds.Daily()); err != nil {
		return err
	}
	return pr.Analysis(FromDataset(ds))
}

// Table prints the first TableDays daily means rounded to two decimals, without
// digit grouping.
func (pr *Printer) Table(daily []types.DailyAggregate) error {
	rows := pipeline.Head(daily, TableDays)
	if _, err := pr.p.Fprintf(pr.w, "\nSummary Table (First %d Days of Daily Averages):\n", TableDays); err != nil {
		return err
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(pr.w, "(no data)")
		return err
	}

	tw := tabwriter.NewWriter(pr.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "Date\t")
	for _, f := range types.Measurements {
		fmt.Fprintf(tw, "%s\t", f.Label())
	}
	fmt.Fprintln(tw)
	for _, d := range rows {
		fmt.Fprintf(tw, "%s\t", d.DateString())
		for _, f := range types.Measurements {
			fmt.Fprintf(tw, "%.2f\t", d.Value(f))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// Analysis prints the headline figures of s.
func (pr *Printer) Analysis(s Summary) error {
	p := pr.p
	lines := []string{
		"",
		"Air Quality Analysis Report",
		"==================================================",
	}
	if s.Empty() {
		lines = append(lines, "No records survived cleaning; nothing to analyse.")
		lines = append(lines, s.Stats.Warnings()...)
		return pr.lines(lines)
	}

	lines = append(lines,
		p.Sprintf("- Dataset Size: %d hourly records over %d days", s.Records, s.Days),
		p.Sprintf("- Time Period: %s to %s", s.From.Format(types.DateLayout), s.To.Format(types.DateLayout)),
		p.Sprintf("- Dropped Rows: %d invalid timestamps, %d incomplete", s.Stats.InvalidTimestamps, s.Stats.Incomplete),
		"- Key Observations:",
		p.Sprintf("  - Average CO: %.2f %s, Max: %.2f %s", s.CO.Mean, types.FieldCO.Unit(), s.CO.Max, types.FieldCO.Unit()),
		p.Sprintf("  - Average C6H6: %.2f %s, Max: %.2f %s", s.Benzene.Mean, types.FieldBenzene.Unit(), s.Benzene.Max, types.FieldBenzene.Unit()),
		"  - NOx/NO2 correlation: "+pr.coefficient(s.NOxNO2),
		p.Sprintf("  - Temperature Range: %.2f%s to %.2f%s", s.Temperature.Min, types.FieldTemperature.Unit(), s.Temperature.Max, types.FieldTemperature.Unit()),
		p.Sprintf("  - Humidity Range: %.2f%s to %.2f%s", s.Humidity.Min, types.FieldHumidity.Unit(), s.Humidity.Max, types.FieldHumidity.Unit()),
	)
	if s.PeakCOHour >= 0 {
		lines = append(lines, fmt.Sprintf("  - CO peaks on average at %02d:00", s.PeakCOHour))
	}
	return pr.lines(lines)
}

func (pr *Printer) coefficient(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	strength := "weak"
	switch a := math.Abs(v); {
	case a >= 0.7:
		strength = "strong"
	case a >= 0.4:
		strength = "moderate"
	}
	return pr.p.Sprintf("%.2f (%s)", v, strength)
}

func (pr *Printer) lines(lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(pr.w, l); err != nil {
			return err
		}
	}
	return nil
}
