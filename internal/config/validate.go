package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidTask reports a task name outside ValidTasks.
var ErrInvalidTask = errors.New("invalid task")

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateExtract(); err != nil {
		return err
	}
	if err := c.validateWriter(); err != nil {
		return err
	}
	if c.Combine.Workers < 1 {
		return errors.New("combine.workers must be positive")
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateTask reports whether task is one of ValidTasks.
func ValidateTask(task string) error {
	if slices.Contains(ValidTasks, task) {
		return nil
	}
	return fmt.Errorf("%w %q: must be one of %s", ErrInvalidTask, task, strings.Join(ValidTasks, ", "))
}

func (c *Config) validatePaths() error {
	if c.Paths.StudyDir == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/hcpextract/config.toml"
		}
		return fmt.Errorf("paths.study_dir is required. Set %s or edit %s (create with 'hcpextract config init')", StudyDirEnv, defaultPath)
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateExtract() error {
	if len(c.Extract.Tasks) == 0 {
		return errors.New("extract.tasks must list at least one task")
	}
	for _, task := range c.Extract.Tasks {
		if err := ValidateTask(task); err != nil {
			return fmt.Errorf("extract.tasks: %w", err)
		}
	}
	if c.Extract.Workers < 1 {
		return errors.New("extract.workers must be positive")
	}
	if c.Extract.StatsDir == "" {
		return errors.New("extract.stats_dir must be set")
	}
	if c.Extract.SourceExt == "" || !strings.HasSuffix(c.Extract.SourceExt, ".nii") {
		return fmt.Errorf("extract.source_ext %q must end in .nii", c.Extract.SourceExt)
	}
	if c.Extract.ConverterBinary == "" {
		return errors.New("extract.converter_binary must be set")
	}
	if c.Extract.ConvertTimeoutSeconds < 0 {
		return errors.New("extract.convert_timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateWriter() error {
	if c.Writer.BatchSize < 1 {
		return errors.New("writer.batch_size must be positive")
	}
	if c.Writer.FlushIntervalMs < 1 {
		return errors.New("writer.flush_interval_ms must be positive")
	}
	if c.Writer.QueueCapacity < 0 {
		return errors.New("writer.queue_capacity must not be negative")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.IndexEnv == "" {
		return errors.New("scheduler.index_env must be set")
	}
	if c.Scheduler.MaxParallel < 1 {
		return errors.New("scheduler.max_parallel must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	if c.Logging.RelayCapacity < 0 {
		return errors.New("logging.relay_capacity must not be negative")
	}
	return nil
}
