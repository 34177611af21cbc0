// Package aggregate checks the status store for completeness before the
// combine stage runs.
//
// Two independent policies live here. CheckCompleteness compares the number
// of distinct (pid, session) pairs with the number of WorkItems and only
// warns on mismatch. Verify is the gate in front of combine and fails unless
// every record is built.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"hcpextract/internal/logging"
	"hcpextract/internal/status"
)

// ErrIncomplete is returned by Verify when the records are not all built.
var ErrIncomplete = errors.New("derived files incomplete")

// maxSamplePaths bounds the missing paths quoted in an IncompleteError.
const maxSamplePaths = 5

// Querier is the read side of the status store.
type Querier interface {
	Query(ctx context.Context, filter status.Filter) ([]status.Record, error)
}

// Report summarizes the records matching one filter.
type Report struct {
	Expected int
	Sessions int
	Built    int
	Missing  int
}

// Complete reports whether the session count matches the expectation.
func (r Report) Complete() bool {
	return r.Sessions == r.Expected
}

// CheckCompleteness counts distinct (pid, session) pairs among records
// matching filter and compares them with expected. A mismatch is logged as a
// warning and is not an error; only store failures are returned.
func CheckCompleteness(ctx context.Context, store Querier, filter status.Filter, expected int, logger *slog.Logger) (Report, error) {
	records, err := store.Query(ctx, filter)
	if err != nil {
		return Report{}, fmt.Errorf("query status: %w", err)
	}
	report := Summarize(records)
	report.Expected = expected

	logger = logging.NewComponentLogger(logger, "aggregate")
	if !report.Complete() {
		logging.WarnWithContext(logger, "session count does not match work items", "completeness_mismatch",
			logging.String(logging.FieldTask, filter.Task),
			logging.Int("expected", expected),
			logging.Int("sessions", report.Sessions),
			logging.Int("built", report.Built),
			logging.Int("missing", report.Missing),
			logging.String(logging.FieldImpact, "some sessions may be absent from the combined output"),
			logging.String(logging.FieldErrorHint, "rerun extract or inspect the work item lists"),
		)
		return report, nil
	}
	logger.Info("completeness check passed",
		logging.String(logging.FieldEventType, "completeness_ok"),
		logging.String(logging.FieldTask, filter.Task),
		logging.Int("sessions", report.Sessions),
		logging.Int("built", report.Built),
		logging.Int("missing", report.Missing),
	)
	return report, nil
}

// Summarize counts sessions and statuses without an expectation.
func Summarize(records []status.Record) Report {
	type key struct{ pid, session string }
	seen := make(map[key]struct{})
	var report Report
	for _, rec := range records {
		seen[key{rec.PID, rec.Session}] = struct{}{}
		switch rec.Status {
		case status.StatusBuilt:
			report.Built++
		default:
			report.Missing++
		}
	}
	report.Sessions = len(seen)
	return report
}

// IncompleteError describes why Verify rejected a record set.
type IncompleteError struct {
	Total   int
	Missing int
	Samples []string
}

func (e *IncompleteError) Error() string {
	if e.Total == 0 {
		return ErrIncomplete.Error() + ": no records"
	}
	return fmt.Sprintf("%s: %d of %d records missing (%s)",
		ErrIncomplete, e.Missing, e.Total, strings.Join(e.Samples, ", "))
}

func (e *IncompleteError) Unwrap() error { return ErrIncomplete }

// Verify returns nil only when records is non-empty and every record is
// built.
func Verify(records []status.Record) error {
	if len(records) == 0 {
		return &IncompleteError{}
	}
	var missing []string
	for _, rec := range records {
		if rec.Status != status.StatusBuilt {
			missing = append(missing, rec.Filepath)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	samples := missing
	if len(samples) > maxSamplePaths {
		samples = samples[:maxSamplePaths]
	}
	return &IncompleteError{Total: len(records), Missing: len(missing), Samples: samples}
}
