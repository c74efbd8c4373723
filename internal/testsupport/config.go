package testsupport

import (
	"path/filepath"
	"testing"

	"phototriage/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.PhotosDir = filepath.Join(base, "photos")
	cfg.Paths.AlbumsDir = filepath.Join(base, "albums")
	cfg.Paths.TrashDir = filepath.Join(base, "trash")
	cfg.Paths.StateDir = filepath.Join(base, "state")

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithPageSize overrides the pagination page size on the test config.
func WithPageSize(size int) ConfigOption {
	return func(c *config.Config) {
		c.Paging.PageSize = size
	}
}

// WithMaxFetchAttempts overrides the page continuation bound on the test
// config.
func WithMaxFetchAttempts(attempts int) ConfigOption {
	return func(c *config.Config) {
		c.Paging.MaxFetchAttempts = attempts
	}
}

// WithBatchSize overrides the deletion batch size on the test config.
func WithBatchSize(size int) ConfigOption {
	return func(c *config.Config) {
		c.Deletion.BatchSize = size
	}
}

// WithAutoBatch toggles automatic deletion flushing on the test config.
func WithAutoBatch(enabled bool) ConfigOption {
	return func(c *config.Config) {
		c.Deletion.AutoBatch = enabled
	}
}
