package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	lipgloss "github.com/charmbracelet/lipgloss/v2"

	"github.com/erg0nix/trialchat/internal/chat"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [session-id]",
		Short: "Print the stored transcript of a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			id, err := sessionArg(app, args)
			if err != nil {
				return err
			}

			resp, err := app.Services.Client.GetHistory(cmd.Context(), id)
			if err != nil {
				lipgloss.Println(styledError(err.Error(), errorHints(err, app.Config.APIURL)...))
				return ErrReported
			}

			messages := chat.MessagesFromHistory(resp, time.Now())
			if len(messages) == 0 {
				lipgloss.Println(styleDim.Render("No messages in session " + id))
				return nil
			}

			renderer := newMarkdownRenderer()
			for _, msg := range messages {
				printMessage(msg, renderer)
			}
			if n := len(resp.AuditLogs); n > 0 {
				lipgloss.Println(styleDim.Render(fmt.Sprintf("%d audit log entries; see trialchat replay %s", n, id)))
			}
			return nil
		},
	}
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay [session-id]",
		Short: "Print the backend's replay payload for a session as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			id, err := sessionArg(app, args)
			if err != nil {
				return err
			}

			payload, err := app.Services.Client.ReplaySession(cmd.Context(), id)
			if err != nil {
				lipgloss.Println(styledError(err.Error(), errorHints(err, app.Config.APIURL)...))
				return ErrReported
			}

			return printJSON(payload)
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			payload, err := app.Services.Client.CheckHealth(cmd.Context())
			if err != nil {
				lipgloss.Println(kvLine("Backend", app.Config.APIURL))
				lipgloss.Println(kvLine("Status", styleError.Render("unreachable")))
				lipgloss.Println(styledError(err.Error(), errorHints(err, app.Config.APIURL)...))
				return ErrReported
			}

			lipgloss.Println(kvLine("Backend", app.Config.APIURL))
			for _, key := range sortedKeys(payload) {
				value := fmt.Sprint(payload[key])
				if key == "status" {
					value = styleSuccess.Render(value)
				}
				lipgloss.Println(kvLine(key, value))
			}
			return nil
		},
	}
}

func sessionArg(app *App, args []string) (string, error) {
	if len(args) == 0 {
		return app.Services.Sessions.Active(), nil
	}

	// Sessions created by other clients are not in the local list, so unknown ids pass through.
	if id, err := matchSession(app.Services.Sessions.List(), args[0]); err == nil {
		return id, nil
	}
	return args[0], nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
