package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"airquality/internal/modules/airquality/pipeline"
)

// CSVFile is the artifact name written by CSVSink.
const CSVFile = "daily_aggregates.csv"

// CSVSink writes the daily table keyed by canonical field names.
type CSVSink struct {
	Dir string
}

func (s CSVSink) Name() string { return "csv" }

func (s CSVSink) Path() string { return filepath.Join(s.Dir, CSVFile) }

func (s CSVSink) Write(ctx context.Context, b Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	df := pipeline.DailyFrame(b.Daily)
	return writeFileAtomic(s.Path(), func(f *os.File) error {
		if err := df.WriteCSV(f); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		return nil
	})
}
