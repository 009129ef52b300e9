package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/app"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/models"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/config"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/render"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const stopTimeout = 5 * time.Second

// errNotLoggedIn is returned by commands that need a session.
var errNotLoggedIn = errors.New("not logged in, run 'sqlagent login' first")

// cli carries the state shared by all commands of one invocation.
type cli struct {
	cfg    *config.Config
	format render.Format
	output string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "sqlagent",
		Short: "Command line client for the schema SQL agent",
		Long: `sqlagent signs you in to the schema SQL agent with Google and manages
your chat sessions from the terminal.

The session is kept in a local credential store and expires 24 hours after login.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			versionFlag, _ := cmd.Flags().GetBool("version")
			if versionFlag {
				return nil
			}

			format, err := render.ParseFormat(c.output)
			if err != nil {
				return err
			}
			c.format = format

			cfg, err := config.Load(cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			if err := logger.InitLogger(&cfg.Logging); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.cfg = cfg
			logger.Debug("Configuration loaded",
				zap.String("backend", cfg.Backend.BaseURL),
				zap.String("store", string(cfg.Store.Backend)),
			)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			versionFlag, _ := cmd.Flags().GetBool("version")
			if versionFlag {
				pterm.Info.Println(config.GetVersionInfo())
				return nil
			}
			return cmd.Help()
		},
	}

	config.InitFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringVarP(&c.output, "output", "o", string(render.FormatTable), "Output format (table|json|yaml)")
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	rootCmd.AddCommand(
		c.newLoginCmd(),
		c.newLogoutCmd(),
		c.newWhoamiCmd(),
		c.newSessionsCmd(),
		c.newMessagesCmd(),
		c.newServeCmd(),
	)
	return rootCmd
}

// withApp starts the application for the duration of fn.
func (c *cli) withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.Start(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := a.Stop(stopCtx); err != nil {
			logger.Warn("Failed to stop application", zap.Error(err))
		}
	}()
	return fn(a)
}

// requireUser returns the signed-in user or errNotLoggedIn.
func requireUser(a *app.App) (models.UserProfile, error) {
	user, ok := a.Session.CurrentUser()
	if !ok {
		return models.UserProfile{}, errNotLoggedIn
	}
	return user, nil
}
