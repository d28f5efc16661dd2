package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/erg0nix/trialchat/internal/core"
)

// RequestLogger appends backend traffic to daily JSONL files for debugging.
type RequestLogger struct {
	logDir       string
	logRequests  bool
	logResponses bool
	logger       *slog.Logger
}

type LogEntry struct {
	Timestamp  string          `json:"timestamp"`
	RequestID  string          `json:"request_id"`
	Type       string          `json:"type"`
	Op         string          `json:"op"`
	Method     string          `json:"method,omitempty"`
	URL        string          `json:"url,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
	Duration   string          `json:"duration,omitempty"`
	Error      string          `json:"error,omitempty"`
	StatusCode int             `json:"status_code,omitempty"`
}

func NewRequestLogger(logDir string, logRequests, logResponses bool, logger *slog.Logger) *RequestLogger {
	return &RequestLogger{
		logDir:       logDir,
		logRequests:  logRequests,
		logResponses: logResponses,
		logger:       logger,
	}
}

func (l *RequestLogger) LogRequest(requestID core.RequestID, op, method, url string, payload []byte) {
	if !l.logRequests {
		return
	}

	l.writeLog(LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: string(requestID),
		Type:      "request",
		Op:        op,
		Method:    method,
		URL:       url,
		Payload:   rawJSON(payload),
	})
	l.logger.Debug("api request", "request_id", requestID, "op", op, "method", method, "url", url)
}

func (l *RequestLogger) LogResponse(requestID core.RequestID, op string, statusCode int, body []byte, duration time.Duration) {
	if !l.logResponses {
		return
	}

	l.writeLog(LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RequestID:  string(requestID),
		Type:       "response",
		Op:         op,
		StatusCode: statusCode,
		Response:   rawJSON(body),
		Duration:   duration.String(),
	})
}

func (l *RequestLogger) LogError(requestID core.RequestID, op string, statusCode int, errMsg string, body []byte) {
	l.writeLog(LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RequestID:  string(requestID),
		Type:       "error",
		Op:         op,
		StatusCode: statusCode,
		Error:      errMsg,
		Response:   rawJSON(body),
	})

	l.logger.Error("api request failed",
		"request_id", requestID,
		"op", op,
		"status_code", statusCode,
		"error", errMsg,
	)
}

func (l *RequestLogger) writeLog(entry LogEntry) {
	if l.logDir == "" {
		return
	}

	_ = os.MkdirAll(l.logDir, 0o755)

	logFile := filepath.Join(l.logDir, fmt.Sprintf("api_%s.jsonl", time.Now().Format("2006-01-02")))

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = f.Write(data)
	_, _ = f.WriteString("\n")
}

// rawJSON keeps valid JSON bodies structured in the log and quotes anything else.
func rawJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
