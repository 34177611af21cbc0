// Package discovery inspects the study tree to build WorkItem lists and to
// report sessions whose preprocessed inputs are missing.
package discovery

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"hcpextract/internal/logging"
	"hcpextract/internal/pathmeta"
	"hcpextract/internal/worklist"
)

var (
	sessionPattern = regexp.MustCompile(`^HCD[0-9]{7}_V1_MR$`)
	taskScanDir    = regexp.MustCompile(`^tfMRI_(CARIT|GUESSING)_(AP|PA)`)
	dtseriesFile   = regexp.MustCompile(`tfMRI_.*_Atlas_hp0_clean\.dtseries\.nii`)
)

// Scanner reads one study directory.
type Scanner struct {
	StudyDir string
	Logger   *slog.Logger
}

// Sessions returns the session directories of the study, sorted.
func (s Scanner) Sessions() ([]string, error) {
	entries, err := os.ReadDir(s.StudyDir)
	if err != nil {
		return nil, fmt.Errorf("read study directory: %w", err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() && sessionPattern.MatchString(entry.Name()) {
			out = append(out, entry.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s Scanner) resultsDir(session string) string {
	return filepath.Join(s.StudyDir, session, "MNINonLinear", "Results")
}

// BuildList returns one WorkItem per session that has at least one scan
// directory for task. The label joins the scan directories with "@" and the
// provenance column names the second-level analysis.
func (s Scanner) BuildList(task string) ([]worklist.Item, error) {
	logger := logging.NewComponentLogger(s.Logger, "discovery")
	short := pathmeta.ShortTask(task)
	scanPattern := regexp.MustCompile(`^tfMRI_` + regexp.QuoteMeta(short) + `_(AP|PA)`)

	sessions, err := s.Sessions()
	if err != nil {
		return nil, err
	}
	var items []worklist.Item
	for _, session := range sessions {
		entries, err := os.ReadDir(s.resultsDir(session))
		if err != nil {
			logging.WarnWithContext(logger, "results directory missing", "results_dir_missing",
				logging.String(logging.FieldPID, session),
				logging.Error(err),
				logging.String(logging.FieldImpact, "session left out of the list"),
			)
			continue
		}
		var scans []string
		for _, entry := range entries {
			if entry.IsDir() && scanPattern.MatchString(entry.Name()) {
				scans = append(scans, entry.Name())
			}
		}
		if len(scans) == 0 {
			continue
		}
		sort.Strings(scans)
		items = append(items, worklist.Item{
			PID:        session,
			Label:      strings.Join(scans, "@"),
			Provenance: "tfMRI_" + short,
		})
	}
	return items, nil
}

// MissingInput is one scan directory without a cleaned dense timeseries.
type MissingInput struct {
	Session string
	ScanDir string
}

// Subject returns the subject identifier of the session.
func (m MissingInput) Subject() string {
	subject, _, _ := strings.Cut(m.Session, "_")
	return subject
}

// MissingDtseries reports task scan directories that contain no
// tfMRI_*_Atlas_hp0_clean.dtseries.nii file. Sessions without a results
// directory are logged and not reported.
func (s Scanner) MissingDtseries() ([]MissingInput, error) {
	logger := logging.NewComponentLogger(s.Logger, "discovery")
	sessions, err := s.Sessions()
	if err != nil {
		return nil, err
	}
	var missing []MissingInput
	for _, session := range sessions {
		results := s.resultsDir(session)
		scans, err := os.ReadDir(results)
		if err != nil {
			logging.WarnWithContext(logger, "results directory missing", "results_dir_missing",
				logging.String(logging.FieldPID, session),
				logging.Error(err),
			)
			continue
		}
		for _, scan := range scans {
			if !scan.IsDir() || !taskScanDir.MatchString(scan.Name()) {
				continue
			}
			files, err := os.ReadDir(filepath.Join(results, scan.Name()))
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", scan.Name(), err)
			}
			found := false
			for _, f := range files {
				if dtseriesFile.MatchString(f.Name()) {
					found = true
					break
				}
			}
			if !found {
				missing = append(missing, MissingInput{Session: session, ScanDir: scan.Name()})
			}
		}
	}
	return missing, nil
}

// MissingSubjects returns the distinct subjects in missing, sorted.
func MissingSubjects(missing []MissingInput) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range missing {
		subject := m.Subject()
		if _, ok := seen[subject]; ok {
			continue
		}
		seen[subject] = struct{}{}
		out = append(out, subject)
	}
	sort.Strings(out)
	return out
}
