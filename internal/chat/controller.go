// Package chat holds the transcript state for the active session and drives sends to the backend.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/erg0nix/trialchat/internal/api"
	"github.com/erg0nix/trialchat/internal/core"
	"github.com/erg0nix/trialchat/internal/title"
)

// ApologyMessage replaces the raw error in the transcript when a send fails.
const ApologyMessage = "Sorry, I encountered an error processing your request. Please try again."

var (
	ErrBlankMessage   = errors.New("message is blank")
	ErrBusy           = errors.New("a message is already being sent")
	ErrSessionChanged = errors.New("session changed before the response arrived")
	ErrNothingToRetry = errors.New("no previous message to retry")
)

// Backend is the subset of the API client the controller needs.
type Backend interface {
	SendMessage(ctx context.Context, prompt, sessionID string) (api.ChatResponse, error)
	GetHistory(ctx context.Context, sessionID string) (api.HistoryResponse, error)
}

// TitleHook is called with a generated title the first time a message is sent in a session.
type TitleHook func(sessionID, title string)

type Controller struct {
	backend   Backend
	titleHook TitleHook
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	mu        sync.Mutex
	sessionID string
	// generation changes whenever the transcript is replaced, so a reply to a send from before a
	// reload is recognized as stale even when the session id is the same.
	generation uint64
	messages   []core.Message
	loading   bool
	err       string
	titled    map[string]bool
}

type Option func(*Controller)

func WithTitleHook(hook TitleHook) Option {
	return func(c *Controller) { c.titleHook = hook }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   core.NewMessageID,
		titled:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetSession makes id the current session and clears the transcript without contacting the backend.
func (c *Controller) SetSession(id string) {
	c.reset(id)
}

func (c *Controller) reset(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessionID = id
	c.generation++
	c.messages = nil
	c.err = ""
	return c.generation
}

// LoadHistory switches to sessionID and replaces the transcript with the backend's stored turns.
// Fetch failures leave an empty transcript and are only logged.
func (c *Controller) LoadHistory(ctx context.Context, sessionID string) {
	generation := c.reset(sessionID)

	resp, err := c.backend.GetHistory(ctx, sessionID)
	if err != nil {
		c.logger.Warn("failed to load history", "session_id", sessionID, "error", err)
		return
	}

	messages := MessagesFromHistory(resp, c.now())
	if skipped := len(resp.History) - len(messages); skipped > 0 {
		c.logger.Debug("skipped history records with unknown roles", "session_id", sessionID, "count", skipped)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != generation {
		return
	}
	c.generation++
	c.messages = messages
	if len(messages) > 0 {
		c.titled[sessionID] = true
	}
}

// SendMessage appends content as a user message and posts it to the backend. On failure the
// transcript gets ApologyMessage and the error is also returned.
func (c *Controller) SendMessage(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrBlankMessage
	}

	sessionID, generation, titleToSet, err := c.begin(content)
	if err != nil {
		return err
	}
	defer c.finish()

	if titleToSet != "" && c.titleHook != nil {
		c.titleHook(sessionID, titleToSet)
	}

	resp, sendErr := c.backend.SendMessage(ctx, content, sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != generation {
		c.logger.Info("discarding response for replaced transcript",
			"session_id", sessionID,
			"current_session_id", c.sessionID,
			"failed", sendErr != nil,
		)
		return ErrSessionChanged
	}

	if sendErr != nil {
		c.logger.Debug("send failed", "session_id", sessionID, "error", sendErr)
		c.err = sendErr.Error()
		c.messages = append(c.messages, core.Message{
			ID:        c.newID(),
			Role:      core.RoleAssistant,
			Content:   ApologyMessage,
			Timestamp: c.now(),
			IsError:   true,
		})
		return sendErr
	}

	c.messages = append(c.messages, normalizeChatResponse(resp, c.newID(), c.now()))
	return nil
}

// Retry resends the most recent user message.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	var last string
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == core.RoleUser {
			last = c.messages[i].Content
			break
		}
	}
	c.mu.Unlock()

	if last == "" {
		return ErrNothingToRetry
	}
	return c.SendMessage(ctx, last)
}

func (c *Controller) begin(content string) (string, uint64, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loading {
		return "", 0, "", ErrBusy
	}

	var generated string
	if len(c.messages) == 0 && !c.titled[c.sessionID] {
		c.titled[c.sessionID] = true
		generated = title.Generate(content)
	}

	c.messages = append(c.messages, core.Message{
		ID:        c.newID(),
		Role:      core.RoleUser,
		Content:   content,
		Timestamp: c.now(),
	})
	c.loading = true
	c.err = ""

	return c.sessionID, c.generation, generated, nil
}

func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loading = false
}

// ClearMessages empties the local transcript and error without touching backend history.
func (c *Controller) ClearMessages() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = nil
	c.err = ""
}

func (c *Controller) Messages() []core.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.messages)
}

func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loading
}

// Err returns the message of the last failed send, or "".
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sessionID
}
