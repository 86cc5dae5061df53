package testsupport

import (
	"path/filepath"
	"testing"

	"vpo/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DBPath = filepath.Join(base, "vpo.db")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.PolicyPath = filepath.Join(base, "policy.yaml")
	cfg.Paths.LibraryDirs = []string{filepath.Join(base, "library")}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWorkers overrides the configured worker count.
func WithWorkers(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Processing.Workers = workers
	}
}

// WithOnError overrides the configured batch error mode.
func WithOnError(mode string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Processing.OnError = mode
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DBPath)
}
