// Package title derives short display titles for sessions from the first user message.
package title

import (
	"strings"
	"unicode/utf8"
)

const DefaultTitle = "New Conversation"

const (
	verbatimLimit = 40
	truncateLimit = 45
	// A word boundary is only used when it keeps at least this share of the cut text.
	wordBackoffRatio = 0.7
)

// Generate returns a non-empty title for a session whose first message is message.
func Generate(message string) string {
	text := strings.TrimSpace(message)
	if text == "" {
		return DefaultTitle
	}

	if utf8.RuneCountInString(text) <= verbatimLimit {
		return text
	}

	if label, ok := ExtractKeywords(text); ok {
		return label
	}

	return truncate(collapseSpace(text))
}

func truncate(text string) string {
	if sentence, ok := firstSentence(text); ok && utf8.RuneCountInString(sentence) <= truncateLimit {
		return sentence
	}

	runes := []rune(text)
	if len(runes) <= truncateLimit {
		return text
	}

	cut := runes[:truncateLimit]
	lastSpace := lastIndexRune(cut, ' ')
	if lastSpace > 0 && float64(lastSpace) >= wordBackoffRatio*float64(len(cut)) {
		return strings.TrimSpace(string(cut[:lastSpace])) + ellipsis
	}

	return string(cut) + ellipsis
}

func firstSentence(text string) (string, bool) {
	i := strings.IndexAny(text, ".!?")
	if i < 0 {
		return "", false
	}

	sentence := strings.TrimSpace(text[:i+1])
	return sentence, sentence != ""
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
