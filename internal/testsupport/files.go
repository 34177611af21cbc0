package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"hcpextract/internal/config"
	"hcpextract/internal/pathmeta"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Layout returns the study layout described by cfg.
func Layout(cfg *config.Config) pathmeta.Layout {
	return pathmeta.Layout{
		StudyDir:   cfg.Paths.StudyDir,
		FeatSuffix: cfg.Extract.FeatSuffix,
		SourceExt:  cfg.Extract.SourceExt,
	}
}

// MakeSources creates binary contrast placeholders for one session, task and
// direction, returning their paths in the order given.
func MakeSources(t testing.TB, cfg *config.Config, sessionDir, task, direction string, contrasts ...string) []string {
	t.Helper()

	dir := Layout(cfg).SourceDir(sessionDir, task, direction, cfg.Extract.StatsDir)
	paths := make([]string, 0, len(contrasts))
	for _, name := range contrasts {
		path := filepath.Join(dir, name+"."+cfg.Extract.SourceExt)
		WriteFile(t, path, "binary")
		paths = append(paths, path)
	}
	return paths
}

// WriteList writes a WorkItem list file into the configured list directory.
func WriteList(t testing.TB, cfg *config.Config, name string, lines ...string) string {
	t.Helper()

	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	path := filepath.Join(cfg.Paths.ListDir, name)
	WriteFile(t, path, content)
	return path
}
