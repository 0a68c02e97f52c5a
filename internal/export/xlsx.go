package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"airquality/internal/modules/airquality/pipeline"
	"airquality/internal/modules/airquality/types"
)

const (
	XLSXFile   = "daily_aggregates.xlsx"
	dailySheet = "Daily"
	runSheet   = "Run"
)

// XLSXSink writes a workbook with the daily table and a sheet describing the run.
type XLSXSink struct {
	Dir string
}

func (s XLSXSink) Name() string { return "xlsx" }

func (s XLSXSink) Path() string { return filepath.Join(s.Dir, XLSXFile) }

func (s XLSXSink) Write(ctx context.Context, b Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := workbook(b)
	if err != nil {
		return err
	}
	defer f.Close()

	return writeFileAtomic(s.Path(), func(out *os.File) error {
		if _, err := f.WriteTo(out); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
		return nil
	})
}

func workbook(b Batch) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", dailySheet); err != nil {
		return nil, err
	}

	decimals, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	df := pipeline.DailyFrame(b.Daily)
	names := df.Names()
	for i, name := range names {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(dailySheet, cell, header(name)); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(names), 1)
	if err := f.SetCellStyle(dailySheet, "A1", last, bold); err != nil {
		return nil, err
	}

	for row := 0; row < df.Nrow(); row++ {
		for col, name := range names {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(dailySheet, cell, df.Col(name).Val(row)); err != nil {
				return nil, err
			}
		}
	}
	if df.Nrow() > 0 {
		from, _ := excelize.CoordinatesToCellName(2, 2)
		to, _ := excelize.CoordinatesToCellName(len(types.Measurements)+1, df.Nrow()+1)
		if err := f.SetCellStyle(dailySheet, from, to, decimals); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(dailySheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(runSheet); err != nil {
		return nil, err
	}
	meta := [][2]any{
		{"run_id", b.RunID},
		{"source", b.Source.Path},
		{"source_modified", b.Source.ModTime.UTC().Format("2006-01-02T15:04:05Z")},
		{"generated_at", b.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z")},
		{"days", len(b.Daily)},
	}
	for i, kv := range meta {
		if err := f.SetSheetRow(runSheet, fmt.Sprintf("A%d", i+1), &[]any{kv[0], kv[1]}); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func header(name string) string {
	f := types.Field(name)
	if u := f.Unit(); u != "" {
		return fmt.Sprintf("%s (%s)", f.Label(), u)
	}
	if f == types.FieldDate {
		return f.Label()
	}
	return name
}
