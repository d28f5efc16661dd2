package chat

import (
	"strings"
	"time"

	"github.com/erg0nix/trialchat/internal/api"
	"github.com/erg0nix/trialchat/internal/core"
)

// NoResponseContent is shown when a chat response carries none of the known content fields.
const NoResponseContent = "No response received"

// Field names tried in order when reading a chat response. Older backends used the later names.
var (
	contentFields        = []string{"final_output", "response", "final_response"}
	agentFields          = []string{"agent_results.activated_agents", "agents_activated", "activated_agents"}
	confidenceFields     = []string{"reasoner.confidence", "confidence"}
	reviewStatusFields   = []string{"review.status"}
	usedAgentsFields     = []string{"reasoner.used_agents"}
	trialsAnalyzedFields = []string{"trials_analyzed", "agent_results.trials_analyzed"}
)

var historyTimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func normalizeChatResponse(resp api.ChatResponse, id string, now time.Time) core.Message {
	body := map[string]any(resp)

	content := NoResponseContent
	if v, ok := firstString(body, contentFields); ok {
		content = v
	}

	msg := core.Message{
		ID:        id,
		Role:      core.RoleAssistant,
		Content:   content,
		Timestamp: now,
		Agents:    firstStrings(body, agentFields),
	}

	metadata := map[string]any{}
	if v, ok := firstValue(body, confidenceFields); ok {
		metadata[core.MetaConfidence] = v
	}
	if v, ok := firstString(body, reviewStatusFields); ok {
		metadata[core.MetaReviewStatus] = v
	}
	if agents := firstStrings(body, usedAgentsFields); len(agents) > 0 {
		metadata[core.MetaUsedAgents] = agents
	}
	if v, ok := firstValue(body, trialsAnalyzedFields); ok {
		metadata[core.MetaTrialsAnalyzed] = trialsCount(v)
	}
	if len(metadata) > 0 {
		msg.Metadata = metadata
	}

	return msg
}

// MessagesFromHistory converts stored backend turns to transcript messages, dropping records with
// unknown roles.
func MessagesFromHistory(resp api.HistoryResponse, now time.Time) []core.Message {
	messages := make([]core.Message, 0, len(resp.History))
	for _, rec := range resp.History {
		if msg, ok := normalizeHistoryRecord(rec, now); ok {
			messages = append(messages, msg)
		}
	}
	return messages
}

// normalizeHistoryRecord maps a stored backend turn to a Message. Records with an unknown role
// are reported as not ok.
func normalizeHistoryRecord(rec api.HistoryRecord, now time.Time) (core.Message, bool) {
	role := core.Role(strings.ToLower(strings.TrimSpace(rec.Role)))
	if !role.Valid() {
		return core.Message{}, false
	}

	msg := core.Message{
		ID:        recordID(rec.ID),
		Role:      role,
		Content:   rec.Content,
		Timestamp: parseTimestamp(rec.Timestamp, now),
	}

	outputs := rec.AgentOutputs
	if outputs == nil {
		return msg, true
	}

	if v, ok := outputs["activated_agents"]; ok {
		msg.Agents = core.StringsFromAny(v)
	}

	metadata := map[string]any{}
	if v, ok := core.Lookup(outputs, "reasoner.confidence"); ok {
		metadata[core.MetaConfidence] = v
	}
	if agents := firstStrings(outputs, usedAgentsFields); len(agents) > 0 {
		metadata[core.MetaUsedAgents] = agents
	}
	if v, ok := firstString(outputs, reviewStatusFields); ok {
		metadata[core.MetaReviewStatus] = v
	}
	if len(metadata) > 0 {
		msg.Metadata = metadata
	}

	return msg, true
}

func firstValue(body map[string]any, paths []string) (any, bool) {
	for _, path := range paths {
		if v, ok := core.Lookup(body, path); ok {
			return v, true
		}
	}
	return nil, false
}

func firstString(body map[string]any, paths []string) (string, bool) {
	for _, path := range paths {
		v, _ := core.Lookup(body, path)
		if s := core.StringFromAny(v); s != "" {
			return s, true
		}
	}
	return "", false
}

func firstStrings(body map[string]any, paths []string) []string {
	for _, path := range paths {
		v, _ := core.Lookup(body, path)
		if items := core.StringsFromAny(v); len(items) > 0 {
			return items
		}
	}
	return nil
}

// trialsCount accepts either a count or the list of analyzed trials.
func trialsCount(v any) int {
	if items, ok := v.([]any); ok {
		return len(items)
	}
	return core.IntFromAny(v)
}

func recordID(v any) string {
	switch id := v.(type) {
	case string:
		if id != "" {
			return id
		}
	case map[string]any:
		if oid := core.StringFromAny(id["$oid"]); oid != "" {
			return oid
		}
	}
	return core.NewMessageID()
}

// parseTimestamp reads backend timestamps, which may lack a zone; those are taken as UTC.
func parseTimestamp(value string, fallback time.Time) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	for _, layout := range historyTimestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC()
		}
	}
	return fallback
}
