// Package clean removes first-level model outputs so a task can be rebuilt
// from scratch.
package clean

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"hcpextract/internal/logging"
	"hcpextract/internal/pathmeta"
)

// Publisher receives the derived paths removed by a clean so their records
// can be rewritten as missing.
type Publisher interface {
	Publish(ctx context.Context, path string) error
}

// Options selects what Run removes.
type Options struct {
	StudyDir string
	// Task is a model name (CARIT-PREPOT) or acquisition name (CARIT). A
	// bare acquisition name cleans every model of that acquisition.
	Task string
	// Session limits the clean to one session directory.
	Session string
	DryRun  bool
	Logger  *slog.Logger
}

// Result lists what was (or in dry-run mode would be) removed.
type Result struct {
	Sessions     int
	FeatDirs     []string
	ModelFiles   []string
	DerivedFiles []string
	Failures     int
}

// Run walks the study tree and removes matching .feat directories and .fsf
// model files. Every derived text file found inside a removed .feat
// directory is published so the status store forgets it was built. Removal
// failures are logged and counted; only publish failures stop the run.
func Run(ctx context.Context, opts Options, pub Publisher) (Result, error) {
	var res Result
	task := strings.TrimSpace(opts.Task)
	if task == "" {
		return res, errors.New("clean: task is required")
	}
	logger := logging.NewComponentLogger(opts.Logger, "clean").With(logging.String(logging.FieldTask, task))

	model := strings.ReplaceAll(task, "-", "_")
	scanPattern := regexp.MustCompile(`^tfMRI_` + regexp.QuoteMeta(pathmeta.ShortTask(task)) + `_.*(AP|PA)$`)
	featPattern := regexp.MustCompile(`^tfMRI_` + regexp.QuoteMeta(model) + `.*\.feat$`)
	fsfPattern := regexp.MustCompile(`^tfMRI_` + regexp.QuoteMeta(model) + `.*\.fsf$`)

	sessions, err := sessionDirs(opts.StudyDir, opts.Session)
	if err != nil {
		return res, err
	}

	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Sessions++
		results := filepath.Join(opts.StudyDir, session, "MNINonLinear", "Results")
		scans, err := os.ReadDir(results)
		if err != nil {
			logging.WarnWithContext(logger, "results directory unreadable", "clean_results_missing",
				logging.String(logging.FieldPID, session),
				logging.String("dir", results),
				logging.Error(err),
				logging.String(logging.FieldImpact, "session skipped"),
			)
			continue
		}
		for _, scan := range scans {
			if !scan.IsDir() || !scanPattern.MatchString(scan.Name()) {
				continue
			}
			scanDir := filepath.Join(results, scan.Name())
			if err := cleanScan(ctx, logger, scanDir, featPattern, fsfPattern, opts.DryRun, pub, &res); err != nil {
				return res, err
			}
		}
		logger.Debug("session cleaned", logging.String(logging.FieldPID, session))
	}

	logger.Info("clean finished",
		logging.String(logging.FieldEventType, "clean_finished"),
		logging.Int("sessions", res.Sessions),
		logging.Int("feat_dirs", len(res.FeatDirs)),
		logging.Int("model_files", len(res.ModelFiles)),
		logging.Int("derived_files", len(res.DerivedFiles)),
		logging.Int("failures", res.Failures),
		logging.Bool("dry_run", opts.DryRun),
	)
	return res, nil
}

func cleanScan(ctx context.Context, logger *slog.Logger, scanDir string, featPattern, fsfPattern *regexp.Regexp, dryRun bool, pub Publisher, res *Result) error {
	entries, err := os.ReadDir(scanDir)
	if err != nil {
		res.Failures++
		logger.Error("scan directory unreadable", logging.String("dir", scanDir), logging.Error(err))
		return nil
	}
	for _, entry := range entries {
		path := filepath.Join(scanDir, entry.Name())
		switch {
		case entry.IsDir() && featPattern.MatchString(entry.Name()):
			derived := derivedFiles(path)
			res.FeatDirs = append(res.FeatDirs, path)
			if dryRun {
				res.DerivedFiles = append(res.DerivedFiles, derived...)
				continue
			}
			if err := os.RemoveAll(path); err != nil {
				res.Failures++
				logger.Error("remove feat directory failed", logging.String("dir", path), logging.Error(err))
				continue
			}
			logger.Debug("removed directory", logging.String("dir", path))
			for _, p := range derived {
				if pub != nil {
					if err := pub.Publish(ctx, p); err != nil {
						return fmt.Errorf("publish %s: %w", p, err)
					}
				}
				res.DerivedFiles = append(res.DerivedFiles, p)
			}
		case !entry.IsDir() && fsfPattern.MatchString(entry.Name()):
			res.ModelFiles = append(res.ModelFiles, path)
			if dryRun {
				continue
			}
			if err := os.Remove(path); err != nil {
				res.Failures++
				logger.Error("remove model file failed", logging.String("file", path), logging.Error(err))
				continue
			}
			logger.Debug("removed file", logging.String("file", path))
		}
	}
	return nil
}

// derivedFiles lists the tracked text outputs inside a .feat directory.
func derivedFiles(featDir string) []string {
	var out []string
	_ = filepath.WalkDir(featDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && pathmeta.Parse(path).Matched {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out
}

func sessionDirs(studyDir, only string) ([]string, error) {
	entries, err := os.ReadDir(studyDir)
	if err != nil {
		return nil, fmt.Errorf("read study directory: %w", err)
	}
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "HCD") {
			continue
		}
		if only != "" && entry.Name() != only {
			continue
		}
		out = append(out, entry.Name())
	}
	return out, nil
}
