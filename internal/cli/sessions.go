package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	lipgloss "github.com/charmbracelet/lipgloss/v2"

	"github.com/erg0nix/trialchat/internal/core"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Session management commands",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsNewCmd())
	cmd.AddCommand(newSessionsSwitchCmd())
	cmd.AddCommand(newSessionsDeleteCmd())
	cmd.AddCommand(newSessionsRenameCmd())
	cmd.AddCommand(newSessionsShowCmd())

	return cmd
}

func newSessionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, or pick the active one when run in a terminal",
		Args:  cobra.NoArgs,
		RunE:  runSessionsListCmd,
	}
	cmd.Flags().Bool("plain", false, "always print a table")
	return cmd
}

func runSessionsListCmd(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	plain, _ := cmd.Flags().GetBool("plain")
	sessions := app.Services.Sessions

	if plain || !isInteractive() {
		printSessionsTable(sessions.List(), sessions.Active())
		return nil
	}

	selected, err := pickSession(sessions.List(), sessions.Active())
	if err != nil || selected == "" {
		return err
	}

	sessions.Switch(selected)
	lipgloss.Printf("%s session %s\n", styleSuccess.Render("Activated"), selected)
	return nil
}

func printSessionsTable(list []core.Session, activeID string) {
	t := newTable("", "SESSION ID", "TITLE", "UPDATED")

	for _, sess := range list {
		marker := " "
		id := sess.ID
		if id == activeID {
			marker = styleActive.Render("*")
			id = styleActive.Render(id)
		}
		t.Row(marker, id, sess.Title, formatTime(sess.UpdatedAt))
	}

	lipgloss.Println(t.Render())
}

// pickSession shows an interactive selector. An aborted picker returns "" and no error.
func pickSession(list []core.Session, activeID string) (string, error) {
	var opts []huh.Option[string]
	for _, sess := range list {
		label := sess.Title
		if sess.ID == activeID {
			label = "* " + label
		}

		opt := huh.NewOption(label, sess.ID)
		opt.Key = label + "  " + styleDim.Render(sess.ID+" "+formatTime(sess.UpdatedAt))
		if sess.ID == activeID {
			opt = opt.Selected(true)
		}
		opts = append(opts, opt)
	}

	var selected string
	err := huh.NewSelect[string]().
		Title("Pick a session").
		Options(opts...).
		Value(&selected).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", nil
		}
		return "", err
	}
	return selected, nil
}

func newSessionsNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create a session and make it active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			id := app.Services.NewSession()
			lipgloss.Printf("%s session %s\n", styleSuccess.Render("Created"), id)
			return nil
		},
	}
}

func newSessionsSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <session-id>",
		Short: "Make a session active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			id, err := matchSession(app.Services.Sessions.List(), args[0])
			if err != nil {
				return err
			}

			app.Services.Sessions.Switch(id)
			lipgloss.Printf("%s session %s\n", styleSuccess.Render("Activated"), id)
			return nil
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			sessions := app.Services.Sessions
			id, err := matchSession(sessions.List(), args[0])
			if err != nil {
				return err
			}

			sessions.Delete(id)
			lipgloss.Printf("%s session %s\n", styleSuccess.Render("Deleted"), id)
			lipgloss.Println(styleDim.Render("active session is now " + sessions.Active()))
			return nil
		},
	}
}

func newSessionsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <session-id> <title>",
		Short: "Change a session title",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			id, err := matchSession(app.Services.Sessions.List(), args[0])
			if err != nil {
				return err
			}

			newTitle := strings.TrimSpace(strings.Join(args[1:], " "))
			if newTitle == "" {
				return fmt.Errorf("title must not be blank")
			}

			app.Services.Sessions.UpdateTitle(id, newTitle)
			lipgloss.Printf("%s session %s\n", styleSuccess.Render("Renamed"), id)
			return nil
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [session-id]",
		Short: "Show session details",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			sessions := app.Services.Sessions
			id := sessions.Active()
			if len(args) > 0 {
				if id, err = matchSession(sessions.List(), args[0]); err != nil {
					return err
				}
			}

			sess, ok := sessions.Get(id)
			if !ok {
				return fmt.Errorf("unknown session %s", id)
			}

			statusText := styleDim.Render("inactive")
			if sess.ID == sessions.Active() {
				statusText = styleSuccess.Render("active")
			}

			lipgloss.Println(kvLine("Session", sess.ID))
			lipgloss.Println(kvLine("Title", sess.Title))
			lipgloss.Println(kvLine("Status", statusText))
			lipgloss.Println(kvLine("Created", sess.CreatedAt.Local().Format(time.RFC3339)))
			lipgloss.Println(kvLine("Updated", sess.UpdatedAt.Local().Format(time.RFC3339)))
			return nil
		},
	}
}

// matchSession resolves a full id or an unambiguous id prefix.
func matchSession(list []core.Session, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.New("session id required")
	}

	var matches []string
	for _, sess := range list {
		if sess.ID == query {
			return sess.ID, nil
		}
		if strings.HasPrefix(sess.ID, query) {
			matches = append(matches, sess.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("unknown session %s", query)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("session prefix %s is ambiguous (%d matches)", query, len(matches))
	}
}
