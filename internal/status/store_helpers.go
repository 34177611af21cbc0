package status

import (
	"database/sql"
	"time"
)

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		path      string
		statusStr string
		pid       sql.NullString
		session   sql.NullString
		task      sql.NullString
		direction sql.NullString
		dataKind  sql.NullString
		fileKind  sql.NullString
		updated   sql.NullString
	)
	if err := scanner.Scan(&path, &statusStr, &pid, &session, &task, &direction, &dataKind, &fileKind, &updated); err != nil {
		return nil, err
	}
	return &Record{
		Filepath:  path,
		Status:    Status(statusStr),
		PID:       pid.String,
		Session:   session.String,
		Task:      task.String,
		Direction: direction.String,
		DataKind:  dataKind.String,
		FileKind:  fileKind.String,
		UpdatedAt: parseTimeString(updated),
	}, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value sql.NullString) time.Time {
	if !value.Valid || value.String == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value.String); err == nil {
		return t
	}
	return time.Time{}
}
