package export

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"airquality/internal/db"
	"airquality/internal/db/migrate"
)

// SQLiteSink upserts daily aggregates into the export database, one row per date.
// The most recent run wins for a given date.
type SQLiteSink struct {
	db   *sql.DB
	owns bool
}

// NewSQLiteSink migrates conn and returns a sink writing to it. The caller owns conn.
func NewSQLiteSink(ctx context.Context, conn *sql.DB, logger *slog.Logger) (*SQLiteSink, error) {
	if err := migrate.Run(ctx, conn, logger); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteSink{db: conn}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

// Close closes the database when the sink opened it itself.
func (s *SQLiteSink) Close() error {
	if !s.owns {
		return nil
	}
	return db.Close(s.db)
}

func (s *SQLiteSink) Write(ctx context.Context, b Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO export_runs (run_id, source_path, days, exported_at) VALUES (?, ?, ?, ?)`,
		b.RunID, b.Source.Path, len(b.Daily), b.GeneratedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_aggregates (date, co, c6h6, nox, no2, temperature, humidity, record_count, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			co = excluded.co,
			c6h6 = excluded.c6h6,
			nox = excluded.nox,
			no2 = excluded.no2,
			temperature = excluded.temperature,
			humidity = excluded.humidity,
			record_count = excluded.record_count,
			run_id = excluded.run_id`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, d := range b.Daily {
		if _, err := stmt.ExecContext(ctx,
			d.DateString(), d.CO, d.Benzene, d.NOx, d.NO2, d.Temperature, d.Humidity, d.Count, b.RunID,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", d.DateString(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
