package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/app"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/constants"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/models"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"github.com/briandowns/spinner"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// pageGrace keeps the server up long enough for the success page to redirect.
const pageGrace = time.Second

func (c *cli) newLoginCmd() *cobra.Command {
	var (
		noBrowser bool
		force     bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google",
		Long: `Sign in with Google through the browser.

A local server receives the redirect from the identity provider and stores the
resulting session. Use --no-browser on machines without a browser and open the
printed URL yourself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if user, ok := a.Session.CurrentUser(); ok && !force {
					pterm.Info.Printfln("Already logged in as %s. Use --force to sign in again.", pterm.LightGreen(user.Label()))
					return nil
				}
				return runLogin(cmd.Context(), a, noBrowser, timeout)
			})
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the login URL instead of opening a browser")
	cmd.Flags().BoolVar(&force, "force", false, "Sign in again even if a session exists")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the browser sign-in")
	return cmd
}

func runLogin(ctx context.Context, a *app.App, noBrowser bool, timeout time.Duration) error {
	ln, err := a.Server.Listen()
	if err != nil {
		return err
	}

	serveCtx, stopServer := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- a.Server.Serve(serveCtx, ln) }()
	defer func() {
		stopServer()
		if err := <-served; err != nil {
			logger.Warn("Login server stopped with error", zap.Error(err))
		}
	}()

	loginURL := a.Server.BaseURL() + constants.RouteLogin
	if noBrowser {
		pterm.Info.Printfln("Open this URL in your browser to sign in:\n  %s", loginURL)
	} else if err := openBrowser(loginURL); err != nil {
		logger.Debug("Could not open browser", zap.Error(err))
		pterm.Warning.Printfln("Could not open a browser. Open this URL to sign in:\n  %s", loginURL)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " Waiting for sign-in in the browser..."
	s.Start()
	defer s.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("timed out after %s waiting for sign-in", timeout)
			}
			return waitCtx.Err()

		case outcome := <-a.Auth.Outcomes():
			if outcome.State != models.CallbackSucceeded {
				// The failure page links back to the login route; keep waiting.
				s.Stop()
				pterm.Warning.Println(outcome.Message())
				s.Start()
				continue
			}

			s.Stop()
			user, _ := a.Session.CurrentUser()
			pterm.Success.Printfln("Logged in as %s", pterm.LightGreen(describeUser(user)))

			select {
			case <-time.After(outcome.RedirectAfter + pageGrace):
			case <-ctx.Done():
			}
			return nil
		}
	}
}

func describeUser(user models.UserProfile) string {
	if user.Email != "" && user.Email != user.Label() {
		return fmt.Sprintf("%s <%s>", user.Label(), user.Email)
	}
	return user.Label()
}

func (c *cli) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				wasLoggedIn := a.Session.IsAuthenticated()
				a.Session.Logout(cmd.Context())
				if wasLoggedIn {
					pterm.Success.Println("Logged out")
				} else {
					pterm.Info.Println("Not logged in")
				}
				return nil
			})
		},
	}
}
