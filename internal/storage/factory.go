package storage

import (
	"context"

	"github.com/harnesslab/harness/internal/storage/postgres"
	"github.com/harnesslab/harness/internal/storage/sqlite"
)

// NewStorage opens the backend selected by the config URL.
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.URL == "" {
		cfg.URL = DefaultConfig().URL
	}
	if cfg.IsPostgres() {
		return postgres.New(ctx, cfg.URL)
	}
	return sqlite.New(cfg.URL)
}
