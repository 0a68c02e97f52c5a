package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"airquality/internal/config"
	"airquality/internal/db"
)

// FromConfig builds the sinks named in cfg.ExportSinks, in that order.
func FromConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) ([]Sink, error) {
	var sinks []Sink
	fail := func(err error) ([]Sink, error) {
		return nil, errors.Join(err, New(nil, logger, sinks...).Close())
	}

	for _, name := range cfg.ExportSinks {
		switch name {
		case config.SinkCSV:
			sinks = append(sinks, CSVSink{Dir: cfg.ExportDir})
		case config.SinkXLSX:
			sinks = append(sinks, XLSXSink{Dir: cfg.ExportDir})
		case config.SinkSQLite:
			conn, err := db.Open(ctx, cfg)
			if err != nil {
				return fail(fmt.Errorf("sqlite sink: %w", err))
			}
			s, err := NewSQLiteSink(ctx, conn, logger)
			if err != nil {
				_ = db.Close(conn)
				return fail(fmt.Errorf("sqlite sink: %w", err))
			}
			s.owns = true
			sinks = append(sinks, s)
		case config.SinkInflux:
			sinks = append(sinks, NewInfluxSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
		default:
			return fail(fmt.Errorf("unknown sink %q", name))
		}
	}
	return sinks, nil
}
