package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hcpextract/internal/config"
)

func TestLoadDefaultConfigUsesEnvStudyDirAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	study := filepath.Join(t.TempDir(), "study")
	t.Setenv("HOME", tempHome)
	t.Setenv(config.StudyDirEnv, study)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.StudyDir != study {
		t.Fatalf("unexpected study dir: got %q want %q", cfg.Paths.StudyDir, study)
	}
	wantState := filepath.Join(tempHome, ".local", "share", "hcpextract")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.StorePath() != filepath.Join(wantState, "status.db") {
		t.Fatalf("unexpected store path: %q", cfg.StorePath())
	}
	if cfg.LockPath() != cfg.StorePath()+".lock" {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
	if !filepath.IsAbs(cfg.Paths.ListDir) {
		t.Fatalf("expected list dir to be absolute, got %q", cfg.Paths.ListDir)
	}
	if cfg.Writer.BatchSize != config.Default().Writer.BatchSize {
		t.Fatalf("unexpected batch size: %d", cfg.Writer.BatchSize)
	}
	if cfg.Scheduler.IndexEnv != "SLURM_ARRAY_TASK_ID" {
		t.Fatalf("unexpected index env: %q", cfg.Scheduler.IndexEnv)
	}
	if len(cfg.Extract.Tasks) != len(config.ValidTasks) {
		t.Fatalf("expected all tasks enabled by default, got %v", cfg.Extract.Tasks)
	}
}

func TestLoadRequiresStudyDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.StudyDirEnv, "")

	_, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("expected error without study dir")
	}
	if !strings.Contains(err.Error(), "paths.study_dir") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.StudyDirEnv, "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
study_dir = "~/study"
state_dir = "~/state"

[extract]
tasks = ["carit-prepot", "CARIT-PREPOT"]
workers = 12
source_ext = ".dscalar.nii"

[writer]
batch_size = 7
flush_interval_ms = 50

[logging]
format = "JSON"
level = "Debug"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.StudyDir != filepath.Join(tempHome, "study") {
		t.Fatalf("unexpected study dir: %q", cfg.Paths.StudyDir)
	}
	if len(cfg.Extract.Tasks) != 1 || cfg.Extract.Tasks[0] != "CARIT-PREPOT" {
		t.Fatalf("expected tasks to be upper-cased and deduplicated, got %v", cfg.Extract.Tasks)
	}
	if cfg.Extract.Workers != 12 {
		t.Fatalf("unexpected workers: %d", cfg.Extract.Workers)
	}
	if cfg.Extract.SourceExt != "dscalar.nii" {
		t.Fatalf("expected leading dot trimmed, got %q", cfg.Extract.SourceExt)
	}
	if cfg.Writer.BatchSize != 7 || cfg.Writer.FlushIntervalMs != 50 {
		t.Fatalf("unexpected writer config: %+v", cfg.Writer)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging values lower-cased, got %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"unknown task", func(c *config.Config) { c.Extract.Tasks = []string{"MOTOR"} }, "extract.tasks"},
		{"zero workers", func(c *config.Config) { c.Extract.Workers = 0 }, "extract.workers"},
		{"zero batch", func(c *config.Config) { c.Writer.BatchSize = 0 }, "writer.batch_size"},
		{"zero flush", func(c *config.Config) { c.Writer.FlushIntervalMs = 0 }, "writer.flush_interval_ms"},
		{"zero combine workers", func(c *config.Config) { c.Combine.Workers = 0 }, "combine.workers"},
		{"bad source ext", func(c *config.Config) { c.Extract.SourceExt = "txt" }, "extract.source_ext"},
		{"empty index env", func(c *config.Config) { c.Scheduler.IndexEnv = "" }, "scheduler.index_env"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.StudyDir = t.TempDir()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateTask(t *testing.T) {
	for _, task := range config.ValidTasks {
		if err := config.ValidateTask(task); err != nil {
			t.Fatalf("expected %s valid, got %v", task, err)
		}
	}
	if err := config.ValidateTask("CARIT"); !errors.Is(err, config.ErrInvalidTask) {
		t.Fatalf("expected ErrInvalidTask, got %v", err)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.StudyDirEnv, t.TempDir())

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Extract.ConverterBinary != "wb_command" {
		t.Fatalf("unexpected converter binary: %q", cfg.Extract.ConverterBinary)
	}
}

func TestListFilesAndOutputPath(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.ListDir = t.TempDir()
	cfg.Paths.OutputDir = "/out"
	for _, name := range []string{"GUESSING-l1-list_2run.txt", "GUESSING-l1-list_1run.txt", "CARIT-PREPOT-l1-list_1run.txt"} {
		if err := os.WriteFile(filepath.Join(cfg.Paths.ListDir, name), nil, 0o644); err != nil {
			t.Fatalf("write list: %v", err)
		}
	}
	files, err := cfg.ListFiles("GUESSING")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "GUESSING-l1-list_1run.txt" {
		t.Fatalf("unexpected list files: %v", files)
	}
	if got := cfg.CombineOutputPath("GUESSING", "parcellated"); got != "/out/GUESSING_parcellated.parquet" {
		t.Fatalf("unexpected output path: %q", got)
	}
}
