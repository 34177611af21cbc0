package config

const (
	defaultOutputDir             = "~/.local/share/hcpextract/combined"
	defaultStateDir              = "~/.local/share/hcpextract"
	defaultListDir               = "first_level"
	defaultLogDir                = "~/.local/share/hcpextract/logs"
	defaultExtractWorkers        = 4
	defaultFeatSuffix            = "hp200_s4_level1_hp0_clean_ColeAnticevic"
	defaultStatsDir              = "ParcellatedStats"
	defaultSourceExt             = "ptseries.nii"
	defaultConverterBinary       = "wb_command"
	defaultConvertTimeoutSeconds = 600
	defaultBatchSize             = 100
	defaultFlushIntervalMs       = 2000
	defaultQueueCapacity         = 1024
	defaultCombineWorkers        = 4
	defaultIndexEnv              = "SLURM_ARRAY_TASK_ID"
	defaultSubmitBinary          = "sbatch"
	defaultMaxParallel           = 50
	defaultModelScript           = "sbatch_TaskfMRIAnalysis.bash"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultRelayCapacity         = 256

	// StudyDirEnv overrides paths.study_dir when the config leaves it empty.
	StudyDirEnv = "HCPEXTRACT_STUDY_DIR"
)

// ValidTasks lists the first-level models the pipeline understands.
var ValidTasks = []string{"CARIT-PREPOT", "CARIT-PREVCOND", "GUESSING"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
			ListDir:   defaultListDir,
			LogDir:    defaultLogDir,
		},
		Extract: Extract{
			Tasks:                 append([]string(nil), ValidTasks...),
			Workers:               defaultExtractWorkers,
			FeatSuffix:            defaultFeatSuffix,
			StatsDir:              defaultStatsDir,
			SourceExt:             defaultSourceExt,
			ConverterBinary:       defaultConverterBinary,
			ConvertTimeoutSeconds: defaultConvertTimeoutSeconds,
		},
		Writer: Writer{
			BatchSize:       defaultBatchSize,
			FlushIntervalMs: defaultFlushIntervalMs,
			QueueCapacity:   defaultQueueCapacity,
		},
		Combine: Combine{
			Workers: defaultCombineWorkers,
		},
		Scheduler: Scheduler{
			IndexEnv:     defaultIndexEnv,
			SubmitBinary: defaultSubmitBinary,
			MaxParallel:  defaultMaxParallel,
			ModelScript:  defaultModelScript,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RelayCapacity: defaultRelayCapacity,
		},
	}
}
