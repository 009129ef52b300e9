package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/apiclient"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/app"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/render"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04"

func (c *cli) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				user, err := requireUser(a)
				if err != nil {
					return err
				}
				table := render.Table{
					{"FIELD", "VALUE"},
					{"Name", user.DisplayName},
					{"Email", user.Email},
					{"Database", user.LinkedDatabaseName},
				}
				return render.Render(os.Stdout, c.format, user, table)
			})
		},
	}
}

func (c *cli) newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage chat sessions",
	}

	var email string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List your chat sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				user, err := requireUser(a)
				if err != nil {
					return err
				}
				if email == "" {
					email = user.Email
				}
				sessions := a.Client.ListSessions(cmd.Context(), email)
				return render.Render(os.Stdout, c.format, sessions, sessionsTable(sessions))
			})
		},
	}
	listCmd.Flags().StringVar(&email, "email", "", "List the sessions of this email instead of the signed-in user")

	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a chat session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				user, err := requireUser(a)
				if err != nil {
					return err
				}
				created := a.Client.CreateSession(cmd.Context(), user.Email, strings.Join(args, " "))
				if created == nil {
					return fmt.Errorf("failed to create session")
				}
				return render.Render(os.Stdout, c.format, created, sessionsTable([]apiclient.SessionSummary{*created}))
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete SESSION_ID",
		Short: "Delete a chat session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if _, err := requireUser(a); err != nil {
					return err
				}
				if !a.Client.DeleteSession(cmd.Context(), args[0]) {
					return fmt.Errorf("failed to delete session %s", args[0])
				}
				pterm.Success.Printfln("Deleted session %s", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, createCmd, deleteCmd)
	return cmd
}

func (c *cli) newMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "messages",
		Aliases: []string{"message"},
		Short:   "Read session transcripts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list SESSION_ID",
		Short: "List the messages of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if _, err := requireUser(a); err != nil {
					return err
				}
				messages := a.Client.ListMessages(cmd.Context(), args[0])
				return render.Render(os.Stdout, c.format, messages, messagesTable(messages))
			})
		},
	})
	return cmd
}

func sessionsTable(sessions []apiclient.SessionSummary) render.Table {
	table := render.Table{{"ID", "NAME", "MESSAGES", "ACTIVE", "UPDATED"}}
	for _, s := range sessions {
		count := "-"
		if s.MessageCount != nil {
			count = strconv.Itoa(*s.MessageCount)
		}
		updated := s.UpdatedAt
		if updated.IsZero() {
			updated = s.CreatedAt
		}
		table = append(table, []string{
			s.SessionID,
			s.SessionName,
			count,
			strconv.FormatBool(s.IsActive),
			formatTime(updated),
		})
	}
	return table
}

func messagesTable(messages []apiclient.Message) render.Table {
	table := render.Table{{"TIME", "FROM", "CONTENT"}}
	for _, m := range messages {
		table = append(table, []string{
			formatTime(m.Timestamp),
			string(m.MessageType),
			truncate(m.Content, 80),
		})
	}
	return table
}

func formatTime(ts apiclient.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(timeLayout)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
