package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	lipgloss "github.com/charmbracelet/lipgloss/v2"

	"github.com/erg0nix/trialchat/internal/api"
	"github.com/erg0nix/trialchat/internal/core"

	"github.com/spf13/cobra"
)

// runCmd sends a single prompt into the active session and prints the reply. With no arguments
// and piped stdin, the prompt is read from stdin.
func runCmd(cmd *cobra.Command, args []string) error {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" && !stdinIsTerminal() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read prompt: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return cmd.Help()
	}

	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	services := app.Services
	renderer := newMarkdownRenderer()

	sendErr := services.Chat.SendMessage(cmd.Context(), prompt)
	if reply, ok := lastAssistant(services.Chat.Messages()); ok {
		printMessage(reply, renderer)
	}

	if sendErr != nil {
		lipgloss.Println(styledError(sendErr.Error(), errorHints(sendErr, app.Config.APIURL)...))
		return ErrReported
	}

	if sess, ok := services.Sessions.Get(services.Sessions.Active()); ok {
		lipgloss.Println(styleDim.Render("session " + sess.ID + " · " + sess.Title))
	}
	return nil
}

// ErrReported signals failure after the error has already been printed.
var ErrReported = errors.New("error already reported")

func lastAssistant(messages []core.Message) (core.Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == core.RoleAssistant {
			return messages[i], true
		}
	}
	return core.Message{}, false
}

func errorHints(err error, apiURL string) []string {
	switch {
	case api.IsKind(err, api.KindNetwork):
		return []string{"is the backend running at " + apiURL + "?", "check with: trialchat health"}
	case api.IsKind(err, api.KindTimeout):
		return []string{"the backend did not answer in time; raise timeout_seconds in the config"}
	case api.IsKind(err, api.KindEmptyResponse):
		return []string{"the backend returned an empty response"}
	default:
		return nil
	}
}
