package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"hcpextract/internal/pathmeta"
)

const recordColumns = "filepath, status, pid, session, task, direction, data_kind, file_kind, updated_at"

const upsertSQL = `INSERT INTO derived_files (` + recordColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(filepath) DO UPDATE SET
    status = excluded.status,
    pid = excluded.pid,
    session = excluded.session,
    task = excluded.task,
    direction = excluded.direction,
    data_kind = excluded.data_kind,
    file_kind = excluded.file_kind,
    updated_at = excluded.updated_at`

type observation struct {
	path   string
	status Status
	meta   pathmeta.Result
}

// UpsertBatch stats every path, parses its metadata, and writes all records
// in one transaction. Either every record in the batch commits or none do.
// Empty paths are ignored and duplicates collapse to one record.
func (s *Store) UpsertBatch(ctx context.Context, paths []string) (BatchResult, error) {
	ctx = ensureContext(ctx)
	observations, err := observe(paths)
	if err != nil {
		return BatchResult{}, err
	}
	if len(observations) == 0 {
		return BatchResult{}, nil
	}

	var result BatchResult
	err = retryOnBusy(ctx, func() error {
		var commitErr error
		result, commitErr = s.commit(ctx, observations)
		return commitErr
	})
	if err != nil {
		return BatchResult{}, err
	}
	return result, nil
}

func observe(paths []string) ([]observation, error) {
	seen := make(map[string]struct{}, len(paths))
	out := make([]observation, 0, len(paths))
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}

		st := StatusBuilt
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			st = StatusMissing
		case err != nil:
			return nil, fmt.Errorf("stat %s: %w", path, err)
		case info.IsDir():
			st = StatusMissing
		}
		out = append(out, observation{path: path, status: st, meta: pathmeta.Parse(path)})
	}
	return out, nil
}

func (s *Store) commit(ctx context.Context, observations []observation) (BatchResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return BatchResult{}, fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return BatchResult{}, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC().Format(time.RFC3339Nano)
	var result BatchResult
	for _, obs := range observations {
		f := obs.meta.Fields
		if _, err := stmt.ExecContext(ctx,
			obs.path,
			string(obs.status),
			nullableString(f.PID),
			nullableString(f.Session),
			nullableString(f.Task),
			nullableString(f.Direction),
			nullableString(f.DataKind),
			nullableString(f.FileKind),
			now,
		); err != nil {
			return BatchResult{}, fmt.Errorf("upsert %s: %w", obs.path, err)
		}
		if obs.status == StatusBuilt {
			result.Built++
		} else {
			result.Missing++
		}
	}

	if err := tx.Commit(); err != nil {
		return BatchResult{}, fmt.Errorf("commit batch: %w", err)
	}
	return result, nil
}

// GetStatus returns the recorded status of path. ok is false when the store
// has never observed it.
func (s *Store) GetStatus(ctx context.Context, path string) (Status, bool, error) {
	ctx = ensureContext(ctx)
	var raw string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT status FROM derived_files WHERE filepath = ?", path).Scan(&raw)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get status: %w", err)
	}
	return Status(raw), true, nil
}

// Get returns the full record for path, or nil when absent.
func (s *Store) Get(ctx context.Context, path string) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM derived_files WHERE filepath = ?", path)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// Query returns every record matching filter ordered by path.
func (s *Store) Query(ctx context.Context, filter Filter) ([]Record, error) {
	ctx = ensureContext(ctx)
	where, args := filter.clause()
	var records []Record
	err := retryOnBusy(ctx, func() error {
		records = records[:0]
		rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM derived_files"+where+" ORDER BY filepath", args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			records = append(records, *rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	return records, nil
}

// Paths returns every tracked path.
func (s *Store) Paths(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT filepath FROM derived_files ORDER BY filepath")
	if err != nil {
		return nil, fmt.Errorf("list paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// Summaries groups records by task, data kind, and file kind.
func (s *Store) Summaries(ctx context.Context, filter Filter) ([]Summary, error) {
	ctx = ensureContext(ctx)
	where, args := filter.clause()
	query := `SELECT COALESCE(task, ''), COALESCE(data_kind, ''), COALESCE(file_kind, ''),
    SUM(CASE WHEN status = 'built' THEN 1 ELSE 0 END),
    SUM(CASE WHEN status = 'missing' THEN 1 ELSE 0 END)
FROM derived_files` + where + `
GROUP BY 1, 2, 3
ORDER BY 1, 2, 3`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summarize records: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.Task, &sum.DataKind, &sum.FileKind, &sum.Built, &sum.Missing); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (f Filter) clause() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Task != "" {
		conds = append(conds, "task = ?")
		args = append(args, f.Task)
	}
	if f.FileKind != "" {
		conds = append(conds, "file_kind = ?")
		args = append(args, f.FileKind)
	}
	if f.DataKind != "" {
		conds = append(conds, "data_kind = ?")
		args = append(args, f.DataKind)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
