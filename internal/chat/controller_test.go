package chat

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/erg0nix/trialchat/internal/api"
	"github.com/erg0nix/trialchat/internal/core"
)

type fakeBackend struct {
	mu        sync.Mutex
	responses []api.ChatResponse
	errs      []error
	history   api.HistoryResponse
	historyFn func(string) (api.HistoryResponse, error)
	sendHook  func()
	prompts   []string
	sessions  []string
}

func (f *fakeBackend) SendMessage(ctx context.Context, prompt, sessionID string) (api.ChatResponse, error) {
	if f.sendHook != nil {
		f.sendHook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	call := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	f.sessions = append(f.sessions, sessionID)

	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	if call < len(f.responses) {
		return f.responses[call], nil
	}
	return api.ChatResponse{"final_output": "ok"}, nil
}

func (f *fakeBackend) GetHistory(ctx context.Context, sessionID string) (api.HistoryResponse, error) {
	if f.historyFn != nil {
		return f.historyFn(sessionID)
	}
	return f.history, nil
}

type titleCall struct {
	sessionID string
	title     string
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func newTestController(backend Backend, calls *[]titleCall) *Controller {
	c := NewController(backend,
		WithClock(fixedClock),
		WithTitleHook(func(sessionID, title string) {
			*calls = append(*calls, titleCall{sessionID, title})
		}),
	)
	c.SetSession("s1")
	return c
}

func TestSendMessageSuccess(t *testing.T) {
	backend := &fakeBackend{responses: []api.ChatResponse{{
		"final_output":  "Three trials are recruiting.",
		"agent_results": map[string]any{"activated_agents": []any{"trial_search", "eligibility"}},
		"reasoner":      map[string]any{"confidence": 0.82, "used_agents": []any{"trial_search"}},
		"review":        map[string]any{"status": "approved"},
	}}}
	var calls []titleCall
	c := newTestController(backend, &calls)

	if err := c.SendMessage(context.Background(), "What are the enrollment criteria for diabetes trials?"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Role != core.RoleUser || msgs[1].Role != core.RoleAssistant {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Content != "Three trials are recruiting." {
		t.Errorf("content = %q", msgs[1].Content)
	}
	if len(msgs[1].Agents) != 2 {
		t.Errorf("agents = %v", msgs[1].Agents)
	}
	if msgs[1].Metadata[core.MetaConfidence] != 0.82 {
		t.Errorf("confidence = %v", msgs[1].Metadata[core.MetaConfidence])
	}
	if msgs[1].Metadata[core.MetaReviewStatus] != "approved" {
		t.Errorf("review = %v", msgs[1].Metadata[core.MetaReviewStatus])
	}
	if c.IsLoading() {
		t.Error("still loading after success")
	}
	if c.Err() != "" {
		t.Errorf("Err = %q", c.Err())
	}

	if len(calls) != 1 || calls[0] != (titleCall{"s1", "Enrollment: diabetes trials"}) {
		t.Errorf("title calls = %+v", calls)
	}
	if backend.sessions[0] != "s1" {
		t.Errorf("sent session = %q", backend.sessions[0])
	}
}

func TestSendMessageFailure(t *testing.T) {
	tests := []struct {
		name string
		err  *api.Error
	}{
		{name: "timeout", err: &api.Error{Kind: api.KindTimeout, Op: "send message", Message: "request timed out"}},
		{name: "network", err: &api.Error{Kind: api.KindNetwork, Op: "send message", Message: "backend unreachable"}},
		{name: "server", err: &api.Error{Kind: api.KindServer, Op: "send message", StatusCode: 500, Message: "orchestrator crashed"}},
		{name: "client", err: &api.Error{Kind: api.KindClient, Op: "send message", Message: "invalid response body"}},
		{name: "empty response", err: &api.Error{Kind: api.KindEmptyResponse, Op: "send message", Message: "empty response"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{errs: []error{tt.err}}
			var calls []titleCall
			c := newTestController(backend, &calls)

			err := c.SendMessage(context.Background(), "hi")
			if !api.IsKind(err, tt.err.Kind) {
				t.Fatalf("err = %v, want kind %s", err, tt.err.Kind)
			}

			msgs := c.Messages()
			if len(msgs) != 2 {
				t.Fatalf("messages = %d, want 2", len(msgs))
			}
			if msgs[0].Role != core.RoleUser || msgs[0].Content != "hi" {
				t.Errorf("first = %+v", msgs[0])
			}
			if !msgs[1].IsError || msgs[1].Content != ApologyMessage || msgs[1].Role != core.RoleAssistant {
				t.Errorf("second = %+v", msgs[1])
			}
			if c.Err() != tt.err.Error() {
				t.Errorf("Err = %q, want %q", c.Err(), tt.err.Error())
			}
			if c.IsLoading() {
				t.Error("still loading after failure")
			}
		})
	}
}

func TestSendMessageFailureNotLoggedAtWarn(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	backend := &fakeBackend{errs: []error{&api.Error{Kind: api.KindNetwork, Op: "send message"}}}
	c := NewController(backend, WithLogger(logger), WithClock(fixedClock))
	c.SetSession("s1")

	if err := c.SendMessage(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
	if logs.Len() != 0 {
		t.Errorf("controller logged the failure at warn or above:\n%s", logs.String())
	}
}

func TestSendMessageBlankIsNoop(t *testing.T) {
	backend := &fakeBackend{}
	var calls []titleCall
	c := newTestController(backend, &calls)

	for _, input := range []string{"", "   ", "\n\t"} {
		if err := c.SendMessage(context.Background(), input); !errors.Is(err, ErrBlankMessage) {
			t.Errorf("SendMessage(%q) = %v, want ErrBlankMessage", input, err)
		}
	}

	if len(c.Messages()) != 0 || len(backend.prompts) != 0 || len(calls) != 0 {
		t.Error("blank input changed state")
	}
}

func TestSendMessageRejectsWhilePending(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	backend := &fakeBackend{sendHook: func() {
		close(entered)
		<-release
	}}
	var calls []titleCall
	c := newTestController(backend, &calls)

	done := make(chan error, 1)
	go func() { done <- c.SendMessage(context.Background(), "first question") }()
	<-entered

	if !c.IsLoading() {
		t.Error("IsLoading = false while pending")
	}
	if err := c.SendMessage(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("second send = %v, want ErrBusy", err)
	}
	if n := len(c.Messages()); n != 1 {
		t.Errorf("messages while pending = %d, want 1", n)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}
	if len(c.Messages()) != 2 {
		t.Errorf("messages = %d, want 2", len(c.Messages()))
	}
}

func TestTitleHookFiresOncePerSession(t *testing.T) {
	backend := &fakeBackend{}
	var calls []titleCall
	c := newTestController(backend, &calls)

	ctx := context.Background()
	_ = c.SendMessage(ctx, "first")
	_ = c.SendMessage(ctx, "second")
	c.ClearMessages()
	_ = c.SendMessage(ctx, "after clear")

	c.SetSession("s2")
	_ = c.SendMessage(ctx, "other session")

	want := []titleCall{{"s1", "first"}, {"s2", "other session"}}
	if len(calls) != len(want) {
		t.Fatalf("title calls = %+v, want %+v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestSessionSwitchDiscardsLateResponse(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	backend := &fakeBackend{sendHook: func() {
		close(entered)
		<-release
	}}
	var calls []titleCall
	c := newTestController(backend, &calls)

	done := make(chan error, 1)
	go func() { done <- c.SendMessage(context.Background(), "slow question") }()
	<-entered

	c.SetSession("s2")
	close(release)

	if err := <-done; !errors.Is(err, ErrSessionChanged) {
		t.Fatalf("err = %v, want ErrSessionChanged", err)
	}
	if msgs := c.Messages(); len(msgs) != 0 {
		t.Errorf("late response leaked into new session: %+v", msgs)
	}
	if c.IsLoading() {
		t.Error("still loading after discarded response")
	}
	if c.SessionID() != "s2" {
		t.Errorf("SessionID = %q", c.SessionID())
	}
}

func TestReloadSameSessionDiscardsLateResponse(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	backend := &fakeBackend{
		sendHook: func() {
			close(entered)
			<-release
		},
		historyFn: func(sessionID string) (api.HistoryResponse, error) {
			if sessionID != "s1" {
				return api.HistoryResponse{SessionID: sessionID}, nil
			}
			return api.HistoryResponse{SessionID: "s1", History: []api.HistoryRecord{
				{ID: "u1", Role: "user", Content: "q"},
				{ID: "a1", Role: "assistant", Content: "answer"},
			}}, nil
		},
	}
	var calls []titleCall
	c := newTestController(backend, &calls)

	done := make(chan error, 1)
	go func() { done <- c.SendMessage(context.Background(), "q") }()
	<-entered

	c.LoadHistory(context.Background(), "s2")
	c.LoadHistory(context.Background(), "s1")
	close(release)

	if err := <-done; !errors.Is(err, ErrSessionChanged) {
		t.Fatalf("err = %v, want ErrSessionChanged", err)
	}

	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2: %+v", len(msgs), msgs)
	}
	if msgs[0].Content != "q" || msgs[1].Content != "answer" {
		t.Errorf("transcript = %+v", msgs)
	}
	if c.IsLoading() {
		t.Error("still loading after discarded response")
	}
}

func TestClearMessages(t *testing.T) {
	backend := &fakeBackend{errs: []error{errors.New("boom")}}
	var calls []titleCall
	c := newTestController(backend, &calls)

	_ = c.SendMessage(context.Background(), "hi")
	if c.Err() == "" {
		t.Fatal("expected error state")
	}

	c.ClearMessages()
	if len(c.Messages()) != 0 || c.Err() != "" {
		t.Errorf("after clear: messages=%d err=%q", len(c.Messages()), c.Err())
	}
}

func TestRetry(t *testing.T) {
	backend := &fakeBackend{errs: []error{errors.New("boom")}}
	var calls []titleCall
	c := newTestController(backend, &calls)

	if err := c.Retry(context.Background()); !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("Retry on empty = %v", err)
	}

	_ = c.SendMessage(context.Background(), "which trials?")
	if err := c.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	if len(backend.prompts) != 2 || backend.prompts[1] != "which trials?" {
		t.Errorf("prompts = %v", backend.prompts)
	}
	if msgs := c.Messages(); len(msgs) != 4 || msgs[3].IsError {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestLoadHistory(t *testing.T) {
	backend := &fakeBackend{history: api.HistoryResponse{
		SessionID: "s9",
		History: []api.HistoryRecord{
			{ID: "m1", Role: "user", Content: "hi", Timestamp: "2024-05-01T10:00:00"},
			{Role: "system", Content: "ignored"},
			{
				ID:        map[string]any{"$oid": "abc"},
				Role:      "assistant",
				Content:   "hello",
				Timestamp: "2024-05-01T10:00:05.123456+00:00",
				AgentOutputs: map[string]any{
					"activated_agents": []any{"trial_search"},
					"reasoner":         map[string]any{"confidence": "medium", "used_agents": []any{"trial_search"}},
					"review":           map[string]any{"status": "passed"},
				},
			},
		},
	}}
	var calls []titleCall
	c := newTestController(backend, &calls)
	_ = c.SendMessage(context.Background(), "stale")

	c.LoadHistory(context.Background(), "s9")

	msgs := c.Messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[1].ID != "abc" {
		t.Errorf("ids = %q, %q", msgs[0].ID, msgs[1].ID)
	}
	wantTS := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if !msgs[0].Timestamp.Equal(wantTS) {
		t.Errorf("timestamp = %v, want %v", msgs[0].Timestamp, wantTS)
	}
	if msgs[1].Metadata[core.MetaConfidence] != "medium" || msgs[1].Metadata[core.MetaReviewStatus] != "passed" {
		t.Errorf("metadata = %v", msgs[1].Metadata)
	}
	if c.SessionID() != "s9" {
		t.Errorf("SessionID = %q", c.SessionID())
	}

	_ = c.SendMessage(context.Background(), "follow up")
	for _, call := range calls {
		if call.sessionID == "s9" {
			t.Errorf("title hook fired for session with history: %+v", call)
		}
	}
}

func TestLoadHistoryFailureIsSwallowed(t *testing.T) {
	backend := &fakeBackend{historyFn: func(string) (api.HistoryResponse, error) {
		return api.HistoryResponse{}, &api.Error{Kind: api.KindNetwork, Op: "get history"}
	}}
	var calls []titleCall
	c := newTestController(backend, &calls)
	_ = c.SendMessage(context.Background(), "old")

	c.LoadHistory(context.Background(), "s2")

	if len(c.Messages()) != 0 || c.Err() != "" {
		t.Errorf("messages=%d err=%q", len(c.Messages()), c.Err())
	}
	if c.SessionID() != "s2" {
		t.Errorf("SessionID = %q", c.SessionID())
	}
}
