package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	lipgloss "github.com/charmbracelet/lipgloss/v2"

	"github.com/erg0nix/trialchat/internal/chat"
	"github.com/erg0nix/trialchat/internal/core"

	"github.com/spf13/cobra"
)

const chatHelp = `/new              start a new conversation
/sessions         list conversations
/switch <id>      switch to a conversation
/delete <id>      delete a conversation
/clear            clear the local transcript
/retry            resend the last message
/help             show this help
/quit             leave`

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat in the active session",
		Args:  cobra.NoArgs,
		RunE:  runChatCmd,
	}
}

func runChatCmd(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	r := &repl{
		app:      app,
		renderer: newMarkdownRenderer(),
		in:       bufio.NewReader(os.Stdin),
	}
	return r.run(cmd.Context())
}

type repl struct {
	app      *App
	renderer *glamour.TermRenderer
	in       *bufio.Reader
}

func (r *repl) run(ctx context.Context) error {
	services := r.app.Services
	services.Activate(ctx, services.Sessions.Active())
	r.printHeader()
	r.printTranscript()

	for {
		lipgloss.Print(stylePrompt.Render("> "))
		line, err := r.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input != "" {
			if quit := r.handle(ctx, input); quit {
				return nil
			}
		}

		if errors.Is(err, io.EOF) {
			fmt.Println()
			return nil
		}
	}
}

// handle processes one line of input and reports whether the loop should stop.
func (r *repl) handle(ctx context.Context, input string) bool {
	services := r.app.Services

	name, arg, isCommand := parseSlashCommand(input)
	if !isCommand {
		r.send(ctx, func() error { return services.Chat.SendMessage(ctx, input) })
		return false
	}

	switch name {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		lipgloss.Println(styleDim.Render(chatHelp))
	case "new":
		services.NewSession()
		r.printHeader()
	case "sessions", "ls":
		printSessionsTable(services.Sessions.List(), services.Sessions.Active())
	case "switch":
		id, ok := r.resolveSession(arg)
		if !ok {
			return false
		}
		services.Activate(ctx, id)
		r.printHeader()
		r.printTranscript()
	case "delete", "rm":
		id, ok := r.resolveSession(arg)
		if !ok {
			return false
		}
		services.DeleteSession(ctx, id)
		lipgloss.Printf("%s session %s\n", styleSuccess.Render("Deleted"), id)
		r.printHeader()
	case "clear":
		services.Chat.ClearMessages()
		lipgloss.Println(styleDim.Render("transcript cleared"))
	case "retry":
		r.send(ctx, func() error { return services.Chat.Retry(ctx) })
	default:
		lipgloss.Println(styledError("unknown command /"+name, "type /help for the list of commands"))
	}
	return false
}

func (r *repl) send(ctx context.Context, fn func() error) {
	services := r.app.Services
	before := len(services.Chat.Messages())

	lipgloss.Println(styleDim.Render("thinking..."))
	err := fn()

	messages := services.Chat.Messages()
	if len(messages) > before {
		for _, msg := range messages[before:] {
			if msg.Role == core.RoleAssistant {
				printMessage(msg, r.renderer)
			}
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, chat.ErrBlankMessage):
	case errors.Is(err, chat.ErrNothingToRetry), errors.Is(err, chat.ErrBusy):
		lipgloss.Println(styleWarning.Render(err.Error()))
	default:
		lipgloss.Println(styleDim.Render(err.Error()))
		if hints := errorHints(err, r.app.Config.APIURL); len(hints) > 0 {
			lipgloss.Println(styleDim.Render(strings.Join(hints, "; ")))
		}
	}
}

// resolveSession accepts a full session id or a unique prefix of one.
func (r *repl) resolveSession(arg string) (string, bool) {
	if arg == "" {
		lipgloss.Println(styledError("session id required"))
		return "", false
	}

	id, err := matchSession(r.app.Services.Sessions.List(), arg)
	if err != nil {
		lipgloss.Println(styledError(err.Error()))
		return "", false
	}
	return id, true
}

func (r *repl) printHeader() {
	services := r.app.Services
	sess, _ := services.Sessions.Get(services.Sessions.Active())
	lipgloss.Println(styleAssistant.Render(sess.Title) + " " + styleDim.Render(sess.ID))
	lipgloss.Println(styleDim.Render("type /help for commands"))
	fmt.Println()
}

func (r *repl) printTranscript() {
	for _, msg := range r.app.Services.Chat.Messages() {
		printMessage(msg, r.renderer)
	}
}

// parseSlashCommand splits "/switch abc" into ("switch", "abc", true). Input not starting with a
// slash is a chat message.
func parseSlashCommand(input string) (string, string, bool) {
	if !strings.HasPrefix(input, "/") {
		return "", "", false
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(input, "/"), " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}
