// Package storage provides the license.Store backends: an in-memory map, a
// JSON snapshot file, PostgreSQL and Redis.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/antikraj/plugin-license-server1/internal/config"
	"github.com/antikraj/plugin-license-server1/internal/infrastructure"
	"github.com/antikraj/plugin-license-server1/internal/license"
)

// Open constructs the backend selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (license.Store, error) {
	log := infrastructure.WithComponent(logger, "license_store").With(slog.String("backend", cfg.Backend))

	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn("using in-memory license store, state is lost on restart")
		return NewMemoryStore(), nil

	case config.BackendFile, "":
		s, err := NewFileStore(afero.NewOsFs(), cfg.FilePath)
		if err != nil {
			return nil, err
		}
		log.Info("license store opened", slog.String("path", cfg.FilePath))
		return s, nil

	case config.BackendPostgres:
		s, err := NewPostgresStore(ctx, PostgresConfig{
			DSN:          cfg.PostgresDSN,
			MaxOpenConns: cfg.MaxOpenConns,
		})
		if err != nil {
			return nil, err
		}
		log.Info("license store opened")
		return s, nil

	case config.BackendRedis:
		client, err := ConnectRedis(cfg.RedisURL)
		if err != nil {
			return nil, license.NewStoreError("open", err)
		}
		s := NewRedisStore(client)
		if err := s.Ping(ctx); err != nil {
			client.Close()
			return nil, err
		}
		log.Info("license store opened")
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.Backend)
	}
}
