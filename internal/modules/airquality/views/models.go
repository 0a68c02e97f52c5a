package views

// FieldOption is one checkbox in the pollutant selector.
type FieldOption struct {
	Name     string
	Label    string
	Unit     string
	Selected bool
}

// Filter echoes the active query back into the form.
type Filter struct {
	From    string
	To      string
	MinDate string
	MaxDate string
}

type SummaryData struct {
	Source            string
	Records           int
	Days              int
	Period            string
	InvalidTimestamps int
	Incomplete        int
	Warnings          []string
}

type Column struct {
	Label string
	Unit  string
}

type DailyRow struct {
	Date   string
	Values []string
	Count  int
}

// Chart is a pre-scaled SVG polyline of one field's daily means.
type Chart struct {
	Label  string
	Unit   string
	Points string
	Min    string
	Max    string
}

// DailyData is the view model for the daily partial.
type DailyData struct {
	Columns []Column
	Rows    []DailyRow
	Charts  []Chart
}

type CorrelationCell struct {
	Text  string
	Class string
}

type CorrelationRow struct {
	Label string
	Cells []CorrelationCell
}

// CorrelationData is the view model for the correlation partial.
type CorrelationData struct {
	Labels  []string
	Rows    []CorrelationRow
	Records int
}

type PreviewRow struct {
	Timestamp string
	Values    []string
}

type PreviewData struct {
	Columns []Column
	Rows    []PreviewRow
}

// DashboardData is the view model for the full page.
type DashboardData struct {
	Filter      Filter
	Fields      []FieldOption
	Summary     SummaryData
	Daily       DailyData
	Correlation CorrelationData
	Preview     PreviewData
}
