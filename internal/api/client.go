// Package api is the HTTP client for the clinical trial chat backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erg0nix/trialchat/internal/config"
	"github.com/erg0nix/trialchat/internal/core"
)

const maxResponseBytes = 16 * 1024 * 1024

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client issues requests to the backend. It holds no state besides its configuration, and it
// never retries on its own.
type Client struct {
	baseURL       string
	client        *http.Client
	requestLogger *RequestLogger
	logger        *slog.Logger
}

func New(cfg Config, debugCfg config.DebugConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = config.DefaultTimeoutSeconds * time.Second
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultAPIURL
	}

	client := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}

	if debugCfg.LogRequests || debugCfg.LogResponses {
		client.requestLogger = NewRequestLogger(
			debugCfg.LogDirectory,
			debugCfg.LogRequests,
			debugCfg.LogResponses,
			slog.Default(),
		)
	}

	return client
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// SendMessage posts a prompt to /chat. An empty sessionID is sent as null so the backend
// allocates one.
func (c *Client) SendMessage(ctx context.Context, prompt, sessionID string) (ChatResponse, error) {
	const op = "send message"

	body := ChatRequest{Prompt: prompt}
	if sessionID != "" {
		body.SessionID = &sessionID
	}

	var resp ChatResponse
	if err := c.do(ctx, op, http.MethodPost, "/chat", body, &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, &Error{Kind: KindEmptyResponse, Op: op, Message: "empty response"}
	}
	return resp, nil
}

func (c *Client) GetHistory(ctx context.Context, sessionID string) (HistoryResponse, error) {
	var resp HistoryResponse
	err := c.do(ctx, "get history", http.MethodGet, "/history/"+url.PathEscape(sessionID), nil, &resp)
	return resp, err
}

func (c *Client) ReplaySession(ctx context.Context, sessionID string) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, "replay session", http.MethodGet, "/replay/"+url.PathEscape(sessionID), nil, &resp)
	return resp, err
}

func (c *Client) CheckHealth(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, "health check", http.MethodGet, "/health", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	requestID := core.NewRequestID()
	endpointURL := c.baseURL + path

	var payload []byte
	var reader io.Reader
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindClient, Op: op, Message: "failed to encode request", Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpointURL, reader)
	if err != nil {
		return &Error{Kind: KindClient, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.requestLogger != nil {
		c.requestLogger.LogRequest(requestID, op, method, endpointURL, payload)
	}

	startTime := time.Now()
	httpResp, err := c.client.Do(req)
	if err != nil {
		apiErr := classifyTransportError(op, err)
		c.logFailure(requestID, apiErr, nil)
		return apiErr
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	duration := time.Since(startTime)
	if err != nil {
		apiErr := classifyTransportError(op, err)
		c.logFailure(requestID, apiErr, nil)
		return apiErr
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		apiErr := &Error{
			Kind:       KindServer,
			Op:         op,
			StatusCode: httpResp.StatusCode,
			Message:    serverMessage(httpResp.StatusCode, data),
		}
		c.logFailure(requestID, apiErr, data)
		return apiErr
	}

	if c.requestLogger != nil {
		c.requestLogger.LogResponse(requestID, op, httpResp.StatusCode, data, duration)
	}
	c.logger.Debug("api call", "request_id", requestID, "op", op, "status", httpResp.StatusCode, "duration", duration)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		apiErr := &Error{Kind: KindEmptyResponse, Op: op, Message: "empty response"}
		c.logFailure(requestID, apiErr, data)
		return apiErr
	}

	if err := json.Unmarshal(trimmed, out); err != nil {
		apiErr := &Error{Kind: KindClient, Op: op, Message: "invalid response body", Err: err}
		c.logFailure(requestID, apiErr, data)
		return apiErr
	}

	return nil
}

func (c *Client) logFailure(requestID core.RequestID, apiErr *Error, body []byte) {
	if c.requestLogger != nil {
		c.requestLogger.LogError(requestID, apiErr.Op, apiErr.StatusCode, apiErr.Error(), body)
		return
	}
	c.logger.Warn("api request failed", "request_id", requestID, "op", apiErr.Op, "kind", apiErr.Kind, "error", apiErr)
}

// serverMessage extracts FastAPI's "detail" field, falling back to the status line.
func serverMessage(status int, body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		switch detail := payload["detail"].(type) {
		case string:
			if detail != "" {
				return detail
			}
		case []any:
			for _, item := range detail {
				if entry, ok := item.(map[string]any); ok {
					if msg := core.StringFromAny(entry["msg"]); msg != "" {
						return msg
					}
				}
			}
		}
		if msg := core.StringFromAny(payload["message"]); msg != "" {
			return msg
		}
	}

	return fmt.Sprintf("HTTP error! status: %d", status)
}
