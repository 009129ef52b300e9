package main

import (
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/app"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local sign-in server until interrupted",
		Long: `Run the local server with the sign-in routes and the landing page.

Routes:
  GET  /auth/login     start the Google sign-in
  GET  /auth/callback  redirect target of the identity provider
  POST /auth/logout    sign out
  GET  /auth/status    session state as JSON
  GET  /               landing page, requires a session`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				pterm.Info.Printfln("Listening on %s", a.Server.BaseURL())
				return a.Server.Start(cmd.Context())
			})
		},
	}
}
