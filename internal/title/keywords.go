package title

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

const (
	maxLabelLen  = 50
	labelCutLen  = 47
	ellipsis     = "..."
	matchTimeout = 50 * time.Millisecond
)

// subject matches the tail of a question up to the first sentence punctuation.
const subject = `([^?.!,;:\n]+)`

type keywordRule struct {
	name    string
	pattern *regexp2.Regexp
	format  func(groups []string) string
}

func prefixed(prefix string) func([]string) string {
	return func(groups []string) string {
		return prefix + strings.Join(groups, " ")
	}
}

func newRule(name, pattern string, opts regexp2.RegexOptions, format func([]string) string) keywordRule {
	re := regexp2.MustCompile(pattern, opts)
	re.MatchTimeout = matchTimeout
	return keywordRule{name: name, pattern: re, format: format}
}

// keywordRules is evaluated in order; the first rule that matches decides the label.
var keywordRules = []keywordRule{
	newRule("trial-id", `\b(NCT\d{8})\b`, regexp2.IgnoreCase, func(g []string) string {
		return "Trial: " + strings.ToUpper(g[0])
	}),
	newRule("trial", `\b(?:clinical\s+)?(?:trials?|stud(?:y|ies))\s+(?:for|of|on|about|in|testing|involving|targeting)\s+`+subject,
		regexp2.IgnoreCase, prefixed("Trial: ")),

	newRule("safety", `\bsafety(?:\s+(?:profile|data|concerns?|signals?))?\s+(?:of|for|in|with)\s+`+subject,
		regexp2.IgnoreCase, prefixed("Safety: ")),
	newRule("efficacy", `\b(?:efficacy|effectiveness)(?:\s+(?:data|results?))?\s+(?:of|for|in|with)\s+`+subject,
		regexp2.IgnoreCase, prefixed("Efficacy: ")),
	newRule("side-effects", `\b(?:side[\s-]effects?|adverse\s+(?:events?|effects?|reactions?))\s+(?:of|for|from|in|with)\s+`+subject,
		regexp2.IgnoreCase, prefixed("Side Effects: ")),

	newRule("enrollment", `\b(?:enrol(?:l)?(?:ment|ing|ed|s)?|eligib(?:le|ility)|inclusion|exclusion|recruit(?:ing|ment)?)\b[^?.!]*?\b(?:for|in|into|of)\s+`+subject,
		regexp2.IgnoreCase, prefixed("Enrollment: ")),

	newRule("phase", `\bphase\s+(1|2|3|4|I{1,3}|IV)\b(?:\s+(?:trials?|stud(?:y|ies)))?(?:\s+(?:for|of|on|in|about))?\s+`+subject,
		regexp2.IgnoreCase, func(g []string) string {
			return "Phase " + strings.ToUpper(g[0]) + ": " + g[1]
		}),

	newRule("question", `^\s*(?:what|which|who|how|when|where|why)\s+(?:is|are|was|were|do|does|did|can|could|should|would|will)\s+(?:the\s+|a\s+|an\s+)?`+subject,
		regexp2.IgnoreCase, prefixed("Question: ")),

	newRule("search", `\b(?:looking\s+for|search(?:ing)?\s+for|find(?:ing)?)\s+(?:me\s+)?(?:the\s+|a\s+|an\s+|some\s+|any\s+)?`+subject,
		regexp2.IgnoreCase, prefixed("Search: ")),

	// Sentence-initial words are capitalized anyway, so only phrases preceded by whitespace count.
	newRule("proper-noun", `(?<=\s)([A-Z][\w-]+(?:\s+[A-Z][\w-]+){0,2})\b`,
		regexp2.None, prefixed("Topic: ")),
}

// ExtractKeywords derives a short label from free text using the first matching keyword rule.
// It reports false when no rule matches.
func ExtractKeywords(text string) (string, bool) {
	return extractWith(keywordRules, text)
}

func extractWith(rules []keywordRule, text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	for _, rule := range rules {
		match, err := rule.pattern.FindStringMatch(text)
		if err != nil || match == nil {
			continue
		}

		groups := captured(match)
		if len(groups) == 0 {
			continue
		}

		label := collapseSpace(rule.format(groups))
		if label == "" {
			continue
		}
		return shortenLabel(label), true
	}

	return "", false
}

func captured(match *regexp2.Match) []string {
	all := match.Groups()
	groups := make([]string, 0, len(all))
	for _, group := range all[1:] {
		value := strings.TrimSpace(group.String())
		if value == "" {
			return nil
		}
		groups = append(groups, value)
	}
	return groups
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func shortenLabel(label string) string {
	if utf8.RuneCountInString(label) <= maxLabelLen {
		return label
	}

	cut := string([]rune(label)[:labelCutLen])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:-") + ellipsis
}
