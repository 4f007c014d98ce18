package cache

import (
	"context"

	"chatsync/internal/config"

	"github.com/samber/oops"
)

// OpenStore builds the backend named by cfg.Backend.
func OpenStore(ctx context.Context, cfg config.Cache) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg.RedisURL)
	case "file", "":
		return NewFileStore(cfg.Path)
	default:
		return nil, oops.In("cache").With("backend", cfg.Backend).Errorf("unknown cache backend %q", cfg.Backend)
	}
}
