package session

import (
	"context"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/credstore"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/config"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newManager(store *credstore.Store) *Manager {
	return NewManager(context.Background(), store)
}

// dirBackend is implemented by backends that keep entries as files.
type dirBackend interface {
	Dir() string
}

func startWatcher(lc fx.Lifecycle, cfg *config.StoreConfig, backend credstore.Backend, manager *Manager) {
	if !cfg.Watch {
		return
	}
	fb, ok := backend.(dirBackend)
	if !ok {
		logger.Warn("store.watch is only supported by the file backend", zap.String("backend", string(cfg.Backend)))
		return
	}

	w := NewWatcher(manager, fb.Dir())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return w.Start() },
		OnStop:  func(context.Context) error { return w.Stop() },
	})
}

// Module provides the session manager
var Module = fx.Module("session",
	fx.Provide(newManager),
	fx.Invoke(startWatcher),
)
