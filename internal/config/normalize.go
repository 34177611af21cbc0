package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeExtract()
	c.normalizeScheduler()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.StudyDir) == "" {
		c.Paths.StudyDir = strings.TrimSpace(os.Getenv(StudyDirEnv))
	}
	fields := []struct {
		key   string
		value *string
	}{
		{"paths.study_dir", &c.Paths.StudyDir},
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.list_dir", &c.Paths.ListDir},
		{"paths.log_dir", &c.Paths.LogDir},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeExtract() {
	tasks := make([]string, 0, len(c.Extract.Tasks))
	seen := make(map[string]struct{}, len(c.Extract.Tasks))
	for _, task := range c.Extract.Tasks {
		task = strings.ToUpper(strings.TrimSpace(task))
		if task == "" {
			continue
		}
		if _, ok := seen[task]; ok {
			continue
		}
		seen[task] = struct{}{}
		tasks = append(tasks, task)
	}
	c.Extract.Tasks = tasks
	c.Extract.FeatSuffix = strings.Trim(strings.TrimSpace(c.Extract.FeatSuffix), "_")
	c.Extract.StatsDir = strings.TrimSpace(c.Extract.StatsDir)
	c.Extract.SourceExt = strings.TrimPrefix(strings.TrimSpace(c.Extract.SourceExt), ".")
	c.Extract.ConverterBinary = strings.TrimSpace(c.Extract.ConverterBinary)
}

func (c *Config) normalizeScheduler() {
	c.Scheduler.IndexEnv = strings.TrimSpace(c.Scheduler.IndexEnv)
	c.Scheduler.SubmitBinary = strings.TrimSpace(c.Scheduler.SubmitBinary)
	c.Scheduler.ModelScript = strings.TrimSpace(c.Scheduler.ModelScript)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
