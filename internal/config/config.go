package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directory layout used by every stage.
type Paths struct {
	StudyDir  string `toml:"study_dir"`
	OutputDir string `toml:"output_dir"`
	StateDir  string `toml:"state_dir"`
	ListDir   string `toml:"list_dir"`
	LogDir    string `toml:"log_dir"`
}

// Extract controls how derived text files are located and produced.
type Extract struct {
	Tasks                 []string `toml:"tasks"`
	Workers               int      `toml:"workers"`
	FeatSuffix            string   `toml:"feat_suffix"`
	StatsDir              string   `toml:"stats_dir"`
	SourceExt             string   `toml:"source_ext"`
	ConverterBinary       string   `toml:"converter_binary"`
	ConvertTimeoutSeconds int      `toml:"convert_timeout_seconds"`
	RefreshBeforeRun      bool     `toml:"refresh_before_run"`
}

// Writer controls batching of status updates.
type Writer struct {
	BatchSize       int `toml:"batch_size"`
	FlushIntervalMs int `toml:"flush_interval_ms"`
	QueueCapacity   int `toml:"queue_capacity"`
}

// Combine controls the read-only reduce stage.
type Combine struct {
	Workers int `toml:"workers"`
}

// Scheduler describes the external batch scheduler used for array jobs.
type Scheduler struct {
	IndexEnv     string   `toml:"index_env"`
	SubmitBinary string   `toml:"submit_binary"`
	MaxParallel  int      `toml:"max_parallel"`
	ExtraArgs    []string `toml:"extra_args"`
	// ModelScript is the batch script that fits one first-level model per
	// array instance. It receives the list file, the acquisition name and
	// optionally "parcellated".
	ModelScript string `toml:"model_script"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RelayCapacity int    `toml:"relay_capacity"`
}

// Config encapsulates all configuration values for hcpextract.
//
// Configuration sections by subsystem:
//   - Paths: study tree, outputs, status store and list files
//   - Extract: candidate discovery and the conversion command
//   - Writer: status batching
//   - Combine: reduce-stage parallelism
//   - Scheduler: array job submission
//   - Logging: log format, level and relay buffering
type Config struct {
	Paths     Paths     `toml:"paths"`
	Extract   Extract   `toml:"extract"`
	Writer    Writer    `toml:"writer"`
	Combine   Combine   `toml:"combine"`
	Scheduler Scheduler `toml:"scheduler"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/hcpextract/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("hcpextract.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the location of the status database.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.StateDir, "status.db")
}

// LockPath returns the advisory lock file guarding status commits.
func (c *Config) LockPath() string {
	return c.StorePath() + ".lock"
}

// ListFiles returns the WorkItem list files present for task, sorted by name.
// Lists follow the "<task>-l1-list_<N>run.txt" naming used by the first-level
// model setup.
func (c *Config) ListFiles(task string) ([]string, error) {
	pattern := filepath.Join(c.Paths.ListDir, task+"-l1-list_*run.txt")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob list files: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// CombineOutputPath returns the consolidated output file for a task and data kind.
func (c *Config) CombineOutputPath(task, dataKind string) string {
	name := task
	if dataKind != "" {
		name += "_" + dataKind
	}
	return filepath.Join(c.Paths.OutputDir, name+".parquet")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
