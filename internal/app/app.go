// Package app assembles the fx application shared by every CLI command.
package app

import (
	"context"
	"fmt"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/apiclient"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/session"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/config"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/requester"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/server"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"
)

// App holds the started components. Stop must be called when done.
type App struct {
	Config  *config.Config
	Session *session.Manager
	Client  *apiclient.Client
	Auth    *auth.Service
	Server  *server.Server

	fxApp *fx.App
}

// configModule exposes the sections of the configuration to the modules that
// depend on them.
var configModule = fx.Module("config",
	fx.Provide(
		func(c *config.Config) *config.ServerConfig { return &c.Server },
		func(c *config.Config) *config.BackendConfig { return &c.Backend },
		func(c *config.Config) *config.OAuthConfig { return &c.OAuth },
		func(c *config.Config) *config.StoreConfig { return &c.Store },
	),
)

// Options returns the fx options of the whole application.
func Options(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		configModule,
		auth.Module,
		fx.Provide(
			fx.Annotate(
				func(m *session.Manager) *session.Manager { return m },
				fx.As(new(requester.TokenSource)),
			),
		),
		apiclient.Module,
		server.Module,
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: logger.GetLogger()}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
	)
}

// Start builds and starts the application.
func Start(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	a.fxApp = fx.New(
		Options(cfg),
		fx.Populate(&a.Session, &a.Client, &a.Auth, &a.Server),
	)
	if err := a.fxApp.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}
	if err := a.fxApp.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start application: %w", err)
	}
	return a, nil
}

// Stop runs the shutdown hooks, closing the credential backend.
func (a *App) Stop(ctx context.Context) error {
	return a.fxApp.Stop(ctx)
}
