package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	lipgloss "github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/term"
	"github.com/muesli/termenv"

	"github.com/erg0nix/trialchat/internal/core"
)

func compactStyle() ansi.StyleConfig {
	var style ansi.StyleConfig
	if termenv.HasDarkBackground() {
		style = glamourstyles.DarkStyleConfig
	} else {
		style = glamourstyles.LightStyleConfig
	}

	zero := uint(0)
	style.Document.Margin = &zero
	style.Document.BlockPrefix = ""
	style.Document.BlockSuffix = ""
	return style
}

func newMarkdownRenderer() *glamour.TermRenderer {
	if !isInteractive() {
		return nil
	}

	width, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(compactStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

func printMessage(msg core.Message, renderer *glamour.TermRenderer) {
	switch msg.Role {
	case core.RoleUser:
		lipgloss.Println(styleUser.Render("you") + " " + styleDim.Render(msg.Timestamp.Local().Format("15:04")))
		fmt.Println(msg.Content)
		fmt.Println()
	case core.RoleAssistant:
		header := styleAssistant.Render("assistant") + " " + styleDim.Render(msg.Timestamp.Local().Format("15:04"))
		if msg.IsError {
			header += " " + styleError.Render("error")
		}
		lipgloss.Println(header)
		printMarkdown(msg.Content, renderer)
		if footer := messageFooter(msg); footer != "" {
			lipgloss.Println(footer)
		}
		fmt.Println()
	}
}

func printMarkdown(text string, renderer *glamour.TermRenderer) {
	if renderer != nil {
		if rendered, err := renderer.Render(text); err == nil {
			fmt.Print(rendered)
			return
		}
	}
	fmt.Println(text)
}

// messageFooter summarizes the agents and review metadata attached to an assistant reply.
func messageFooter(msg core.Message) string {
	var parts []string

	if len(msg.Agents) > 0 {
		agents := make([]string, len(msg.Agents))
		for i, name := range msg.Agents {
			agents[i] = styleAgent.Render(name)
		}
		parts = append(parts, styleDim.Render("agents")+" "+strings.Join(agents, styleDim.Render(", ")))
	}

	if v, ok := msg.Metadata[core.MetaConfidence]; ok {
		parts = append(parts, styleDim.Render("confidence ")+formatConfidence(v))
	}
	if v, ok := msg.Metadata[core.MetaTrialsAnalyzed]; ok {
		parts = append(parts, styleDim.Render(fmt.Sprintf("trials %v", v)))
	}
	if v, ok := msg.Metadata[core.MetaReviewStatus]; ok {
		parts = append(parts, styleDim.Render(fmt.Sprintf("review %v", v)))
	}

	return strings.Join(parts, styleDim.Render("  ·  "))
}

// formatConfidence prints fractional scores as percentages and leaves labels like "high" alone.
func formatConfidence(v any) string {
	switch c := v.(type) {
	case float64:
		if c <= 1 {
			return fmt.Sprintf("%.0f%%", c*100)
		}
		return fmt.Sprintf("%.0f%%", c)
	case string:
		return c
	default:
		return fmt.Sprint(v)
	}
}

func isInteractive() bool {
	return term.IsTerminal(os.Stdout.Fd())
}

func stdinIsTerminal() bool {
	return term.IsTerminal(os.Stdin.Fd())
}
