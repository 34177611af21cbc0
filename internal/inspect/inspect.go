// Package inspect summarizes a combined Parquet output with DuckDB.
package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"hcpextract/internal/logging"
)

// Overview holds whole-file statistics.
type Overview struct {
	Path      string
	Rows      int64
	Sessions  int64
	Contrasts int64
	MinValue  sql.NullFloat64
	MaxValue  sql.NullFloat64
}

// ContrastStat aggregates the rows of one contrast and direction.
type ContrastStat struct {
	Contrast  string
	Direction string
	Rows      int64
	Sessions  int64
	Mean      sql.NullFloat64
}

// Report is the result of Inspect.
type Report struct {
	Overview  Overview
	Contrasts []ContrastStat
}

// Inspect opens an in-memory DuckDB database and queries path with
// read_parquet.
func Inspect(ctx context.Context, path string, logger *slog.Logger) (Report, error) {
	logger = logging.NewComponentLogger(logger, "inspect")
	if _, err := os.Stat(path); err != nil {
		return Report{}, fmt.Errorf("inspect %s: %w", path, err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return Report{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("duckdb connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `INSTALL parquet; LOAD parquet;`); err != nil {
		logger.Debug("parquet extension install skipped", logging.Error(err))
	}

	source := "read_parquet(" + quoteLiteral(path) + ")"
	report := Report{Overview: Overview{Path: path}}

	overviewSQL := `SELECT COUNT(*), COUNT(DISTINCT pid || '_' || session), COUNT(DISTINCT contrast), MIN(value), MAX(value) FROM ` + source
	ov := &report.Overview
	if err := conn.QueryRowContext(ctx, overviewSQL).Scan(&ov.Rows, &ov.Sessions, &ov.Contrasts, &ov.MinValue, &ov.MaxValue); err != nil {
		return Report{}, fmt.Errorf("query overview: %w", err)
	}

	contrastSQL := `SELECT contrast, direction, COUNT(*), COUNT(DISTINCT pid || '_' || session), AVG(value) FROM ` + source +
		` GROUP BY contrast, direction ORDER BY contrast, direction`
	rows, err := conn.QueryContext(ctx, contrastSQL)
	if err != nil {
		return Report{}, fmt.Errorf("query contrasts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st ContrastStat
		if err := rows.Scan(&st.Contrast, &st.Direction, &st.Rows, &st.Sessions, &st.Mean); err != nil {
			return Report{}, fmt.Errorf("scan contrast row: %w", err)
		}
		report.Contrasts = append(report.Contrasts, st)
	}
	if err := rows.Err(); err != nil {
		return Report{}, fmt.Errorf("iterate contrasts: %w", err)
	}

	logger.Debug("inspected output",
		logging.String("path", path),
		logging.Int64("rows", ov.Rows),
		logging.Int("contrasts", len(report.Contrasts)),
	)
	return report, nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
