package status

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Version 1 stores carry only
// the original metadata columns; version 2 adds direction and updated_at.
const schemaVersion = 2

// ErrSchemaMismatch indicates the database was written by a newer release.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// columnMigrations lists columns added after version 1, in order. Each
// statement is a constant so no SQL is assembled at runtime.
var columnMigrations = []struct {
	column string
	stmt   string
}{
	{"direction", "ALTER TABLE derived_files ADD COLUMN direction TEXT"},
	{"updated_at", "ALTER TABLE derived_files ADD COLUMN updated_at TEXT"},
}

// EnsureSchema creates the store tables when absent and upgrades older
// stores in place. It is idempotent and safe to call from several processes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error { return s.ensureSchema(ctx) })
}

func (s *Store) ensureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	hasTable, err := tableExists(ctx, tx, "derived_files")
	if err != nil {
		return err
	}
	hasVersion, err := tableExists(ctx, tx, "schema_version")
	if err != nil {
		return err
	}

	version := 0
	if hasVersion {
		err := tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read schema version: %w", err)
		}
	}
	if version > schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected at most %d (delete %s to rebuild it)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	if hasTable && version == schemaVersion {
		return nil
	}

	if hasTable {
		if err := addMissingColumns(ctx, tx); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("clear schema version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func tableExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var count int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check %s table: %w", name, err)
	}
	return count > 0, nil
}

func addMissingColumns(ctx context.Context, tx *sql.Tx) error {
	existing, err := tableColumns(ctx, tx)
	if err != nil {
		return err
	}
	for _, migration := range columnMigrations {
		if _, ok := existing[migration.column]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, migration.stmt); err != nil {
			return fmt.Errorf("add column %s: %w", migration.column, err)
		}
	}
	return nil
}

func tableColumns(ctx context.Context, tx *sql.Tx) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM pragma_table_info('derived_files')")
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns[name] = struct{}{}
	}
	return columns, rows.Err()
}
