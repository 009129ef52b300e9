package credstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/config"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewBackend builds the backend selected by cfg.
func NewBackend(cfg *config.StoreConfig) (Backend, error) {
	switch cfg.Backend {
	case config.StoreBackendMemory:
		return NewMemoryBackend(), nil
	case config.StoreBackendFile, "":
		return NewFileBackend(cfg.Path)
	case config.StoreBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisBackendWithPrefix(client, cfg.Redis.Prefix), nil
	case config.StoreBackendSQLite:
		path := cfg.Path
		if path == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			dir := filepath.Join(homeDir, DefaultStorageDir)
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create credential directory: %w", err)
			}
			path = filepath.Join(dir, "credentials.db")
		}
		return OpenSQLiteBackend(path)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

// StoreParams holds the dependencies of a Store
type StoreParams struct {
	fx.In

	Config  *config.StoreConfig
	Backend Backend
	Clock   Clock `optional:"true"`
}

// NewStoreFromParams creates the Store used by the application.
func NewStoreFromParams(params StoreParams) *Store {
	opts := []Option{WithTTL(params.Config.TTL)}
	if params.Clock != nil {
		opts = append(opts, WithClock(params.Clock))
	}
	return NewStore(params.Backend, opts...)
}

func newBackendWithLifecycle(lc fx.Lifecycle, cfg *config.StoreConfig) (Backend, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := backend.Close(); err != nil {
				logger.Warn("Failed to close credential backend", zap.Error(err))
			}
			return nil
		},
	})
	logger.Debug("Credential backend ready", zap.String("backend", string(cfg.Backend)))
	return backend, nil
}

// Module provides the credential store dependencies
var Module = fx.Module("credstore",
	fx.Provide(
		newBackendWithLifecycle,
		NewStoreFromParams,
	),
)
