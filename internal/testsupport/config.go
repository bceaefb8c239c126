package testsupport

import (
	"path/filepath"
	"testing"

	"lingotool/internal/config"
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
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.OverlayDir = filepath.Join(base, "overlay")
	cfgVal.Paths.BackupDir = filepath.Join(base, "backups")
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithQuality overrides the quality gate settings on the test config.
func WithQuality(quality config.Quality) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Quality = quality
	}
}

// WithPackFormat overrides the overlay pack format on the test config.
func WithPackFormat(format int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Writeback.PackFormat = format
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
