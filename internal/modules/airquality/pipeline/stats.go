package pipeline

import "fmt"

// Stats counts what happened to the source rows during cleaning.
type Stats struct {
	Rows              int `json:"rows"`
	InvalidTimestamps int `json:"invalidTimestamps"`
	SentinelValues    int `json:"sentinelValues"`
	UnparsableValues  int `json:"unparsableValues"`
	Incomplete        int `json:"incomplete"`
	Kept              int `json:"kept"`
}

// Dropped is the number of source rows excluded from the cleaned set.
func (s Stats) Dropped() int {
	return s.InvalidTimestamps + s.Incomplete
}

// EmptyResult reports a valid file where no row survived cleaning.
func (s Stats) EmptyResult() bool {
	return s.Kept == 0
}

// Warnings summarises the row-level drops. Rows are never itemised.
func (s Stats) Warnings() []string {
	var out []string
	if s.InvalidTimestamps > 0 {
		out = append(out, fmt.Sprintf("%d of %d rows have a Date/Time that is not dd/mm/yyyy HH.MM.SS and were dropped",
			s.InvalidTimestamps, s.Rows))
	}
	if s.Incomplete > 0 {
		out = append(out, fmt.Sprintf("%d rows with missing measurements were dropped", s.Incomplete))
	}
	if s.EmptyResult() {
		out = append(out, "no rows survived cleaning, the dataset is empty")
	}
	return out
}
