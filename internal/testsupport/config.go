package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"hcpextract/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StudyDir = filepath.Join(base, "study")
	cfgVal.Paths.OutputDir = filepath.Join(base, "combined")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.ListDir = filepath.Join(base, "first_level")
	cfgVal.Paths.LogDir = ""
	cfgVal.Writer.BatchSize = 4
	cfgVal.Writer.FlushIntervalMs = 20
	cfgVal.Extract.Workers = 2
	cfgVal.Combine.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBatchSize overrides the writer batch size.
func WithBatchSize(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Writer.BatchSize = n
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the converter binary is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{b.cfg.Extract.ConverterBinary}
		}
		binDir := binDir(b)
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// WithFakeConverter installs a converter script that mimics
// "wb_command -cifti-convert -to-text SRC DST" by writing two values to DST
// and appending SRC to calls.log in the base directory.
func WithFakeConverter() ConfigOption {
	return func(b *configBuilder) {
		target := filepath.Join(binDir(b), "fake_wb_command")
		calls := filepath.Join(b.baseDir, "calls.log")
		script := "#!/bin/sh\n" +
			"echo \"$3\" >> '" + calls + "'\n" +
			"printf '0.25\\n-1.5\\n' > \"$4\"\n"
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			b.t.Fatalf("write fake converter: %v", err)
		}
		b.cfg.Extract.ConverterBinary = target
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

func binDir(b *configBuilder) string {
	dir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	return dir
}
