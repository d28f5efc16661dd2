// Package app wires configuration, storage, the backend client and the chat controller together.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/erg0nix/trialchat/internal/api"
	"github.com/erg0nix/trialchat/internal/chat"
	"github.com/erg0nix/trialchat/internal/config"
	"github.com/erg0nix/trialchat/internal/kv"
	"github.com/erg0nix/trialchat/internal/session"
	"github.com/erg0nix/trialchat/internal/title"
)

// Services is everything a front end needs to drive a conversation.
type Services struct {
	Config   config.Config
	KV       kv.Store
	Sessions *session.Store
	Client   *api.Client
	Chat     *chat.Controller
}

// NewServices opens the configured kv backend, restores the session collection and points the
// controller at the active session. History is not fetched; call Activate for that.
func NewServices(cfg config.Config) (*Services, error) {
	store, err := kv.Open(cfg.Storage.Backend, cfg.StorageDir())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	return newServices(cfg, store, nil), nil
}

func newServices(cfg config.Config, store kv.Store, backend chat.Backend) *Services {
	sessions := session.New(store, session.WithLogger(slog.Default().With("component", "sessions")))
	sessions.Initialize()

	client := api.New(api.Config{BaseURL: cfg.APIURL, Timeout: cfg.Timeout()}, cfg.Debug)
	if backend == nil {
		backend = client
	}

	controller := chat.NewController(backend,
		chat.WithTitleHook(titleHook(sessions)),
		chat.WithLogger(slog.Default().With("component", "chat")),
	)
	controller.SetSession(sessions.Active())

	return &Services{
		Config:   cfg,
		KV:       store,
		Sessions: sessions,
		Client:   client,
		Chat:     controller,
	}
}

// titleHook names a session after its first message. A session that already has a title keeps it,
// which matters when a later process sends into a session whose transcript it never loaded.
func titleHook(sessions *session.Store) chat.TitleHook {
	return func(sessionID, generated string) {
		if sess, ok := sessions.Get(sessionID); ok && sess.Title == title.DefaultTitle {
			sessions.UpdateTitle(sessionID, generated)
		}
	}
}

// Activate makes id the active session and loads its history into the controller.
func (s *Services) Activate(ctx context.Context, id string) {
	s.Sessions.Switch(id)
	s.Chat.LoadHistory(ctx, id)
}

// NewSession creates and activates a fresh session with an empty transcript.
func (s *Services) NewSession() string {
	id := s.Sessions.Create()
	s.Chat.SetSession(id)
	return id
}

// DeleteSession removes id and, when it was the active one, moves the controller to whichever
// session the store activated in its place.
func (s *Services) DeleteSession(ctx context.Context, id string) {
	wasActive := s.Sessions.Active() == id
	s.Sessions.Delete(id)

	if wasActive {
		s.Activate(ctx, s.Sessions.Active())
	}
}

func (s *Services) Close() error {
	return s.KV.Close()
}
