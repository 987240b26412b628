package store

import (
	"context"
	"fmt"

	"datadesigner/internal/config"
	"datadesigner/internal/logging"
)

// FromConfig builds the session store described by the config: the
// selected primary backend plus a local file fallback for saves.
func FromConfig(ctx context.Context, cfg *config.StoreConfig) (*Store, error) {
	fallback := NewFileBackend(cfg.FallbackPath)

	switch cfg.Backend {
	case "file":
		primary := NewFileBackend(cfg.Path)
		logging.Store("session store: %s", primary.Name())
		// A file primary needs no file fallback to the same directory
		if cfg.FallbackPath == "" || cfg.FallbackPath == cfg.Path {
			return New(primary, nil), nil
		}
		return New(primary, fallback), nil

	case "s3":
		primary, err := NewS3BackendFromConfig(ctx, cfg.Bucket, cfg.KeyPrefix, cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("s3 session store: %w", err)
		}
		logging.Store("session store: %s (fallback %s)", primary.Name(), fallback.Name())
		return New(primary, fallback), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
