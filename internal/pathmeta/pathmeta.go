package pathmeta

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// File kinds recognised in contrast file names.
const (
	FileKindCope    = "cope"
	FileKindVarcope = "varcope"
)

// Scan directions.
const (
	DirectionAP = "AP"
	DirectionPA = "PA"
)

// Fields are the identifiers encoded in a derived-file path. Empty strings
// mean absent.
type Fields struct {
	PID       string
	Session   string
	Task      string
	Direction string
	DataKind  string
	FileKind  string
	Contrast  int
}

// Result is the outcome of Parse. Matched is false for any path outside the
// fixed layout, in which case Fields is the zero value.
type Result struct {
	Fields
	Matched bool
}

// Layout describes the study tree below a session directory.
type Layout struct {
	StudyDir   string
	FeatSuffix string
	SourceExt  string
}

var derivedPattern = regexp.MustCompile(
	`(?:^|/)([A-Za-z]+[0-9]+)_(V[0-9]+)_MR/MNINonLinear/Results/` +
		`tfMRI_([A-Z]+)_(AP|PA)/` +
		`tfMRI_([A-Z]+(?:_[A-Z]+)*)_(AP|PA)(?:_[^/]*)?\.feat/` +
		`([A-Za-z]+)Stats/` +
		`((?:var)?cope)([0-9]{1,2})\.[^/]+\.txt$`,
)

// Parse extracts identifiers from a derived-file path. It never panics; any
// input that does not fit the layout yields an unmatched Result.
func Parse(path string) Result {
	m := derivedPattern.FindStringSubmatch(filepath.ToSlash(path))
	if m == nil {
		return Result{}
	}
	short, dir, model, featDir := m[3], m[4], m[5], m[6]
	if dir != featDir || ShortTask(modelToTask(model)) != short {
		return Result{}
	}
	contrast, err := strconv.Atoi(m[9])
	if err != nil {
		return Result{}
	}
	return Result{
		Matched: true,
		Fields: Fields{
			PID:       m[1],
			Session:   m[2],
			Task:      modelToTask(model),
			Direction: dir,
			DataKind:  strings.ToLower(m[7]),
			FileKind:  m[8],
			Contrast:  contrast,
		},
	}
}

// ShortTask returns the acquisition name a model belongs to, e.g. CARIT for
// CARIT-PREPOT.
func ShortTask(task string) string {
	short, _, _ := strings.Cut(task, "-")
	return short
}

// SessionDir returns the directory name for a subject and session,
// e.g. HCD0001305_V1_MR.
func SessionDir(pid, session string) string {
	return pid + "_" + session + "_MR"
}

// ScanLabel returns the acquisition directory name, e.g. tfMRI_CARIT_AP.
func ScanLabel(task, direction string) string {
	return "tfMRI_" + ShortTask(task) + "_" + direction
}

// FeatDir returns the first-level analysis directory name for a model.
func (l Layout) FeatDir(task, direction string) string {
	name := "tfMRI_" + taskToModel(task) + "_" + direction
	if l.FeatSuffix != "" {
		name += "_" + l.FeatSuffix
	}
	return name + ".feat"
}

// StatsDirName maps a data kind onto its directory, e.g. parcellated to
// ParcellatedStats.
func StatsDirName(dataKind string) string {
	return cases.Title(language.Und).String(dataKind) + "Stats"
}

// DataKindFromStatsDir is the inverse of StatsDirName.
func DataKindFromStatsDir(dir string) string {
	return strings.ToLower(strings.TrimSuffix(dir, "Stats"))
}

// SourceDir returns the directory holding contrast files for one session
// directory (the WorkItem pid), task, direction, and stats directory.
func (l Layout) SourceDir(sessionDir, task, direction, statsDir string) string {
	return filepath.Join(
		l.StudyDir, sessionDir, "MNINonLinear", "Results",
		ScanLabel(task, direction),
		l.FeatDir(task, direction),
		statsDir,
	)
}

// Build constructs the canonical derived path for f. Parse(Build(f)) recovers f.
func (l Layout) Build(f Fields) string {
	dir := l.SourceDir(SessionDir(f.PID, f.Session), f.Task, f.Direction, StatsDirName(f.DataKind))
	ext := l.SourceExt
	if ext == "" {
		ext = "ptseries.nii"
	}
	name := fmt.Sprintf("%s%d.%s", f.FileKind, f.Contrast, ext)
	return DerivedPath(filepath.Join(dir, name))
}

// DerivedPath maps a binary source file to its text output by replacing the
// final .nii extension with .txt.
func DerivedPath(source string) string {
	if strings.HasSuffix(source, ".nii") {
		return strings.TrimSuffix(source, ".nii") + ".txt"
	}
	return source + ".txt"
}

func modelToTask(model string) string {
	return strings.ReplaceAll(model, "_", "-")
}

func taskToModel(task string) string {
	return strings.ReplaceAll(task, "-", "_")
}
