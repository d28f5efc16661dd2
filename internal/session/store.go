// Package session keeps the local list of conversation sessions and the active session pointer.
package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/erg0nix/trialchat/internal/core"
	"github.com/erg0nix/trialchat/internal/kv"
	"github.com/erg0nix/trialchat/internal/title"
)

const (
	SessionsKey = "clinical-agent-sessions"
	ActiveKey   = "clinical-agent-active-session"
)

// Store owns the session collection. Every mutation is written through to the backing kv.Store;
// write failures are logged and never returned.
type Store struct {
	mu       sync.Mutex
	kv       kv.Store
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	sessions []core.Session
	active   string
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func New(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:     store,
		logger: slog.Default(),
		now:    time.Now,
		newID:  core.NewSessionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads the persisted collection. Missing or corrupt state is replaced by a single
// default session.
func (s *Store) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil || len(sessions) == 0 {
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn("discarding persisted sessions", "error", err)
		}
		s.resetToDefault()
		s.persist()
		return
	}

	s.sessions = sessions
	s.active = sessions[0].ID

	if data, err := s.kv.Get(ActiveKey); err == nil {
		if id := string(data); s.indexOf(id) >= 0 {
			s.active = id
		}
	}
}

func (s *Store) load() ([]core.Session, error) {
	data, err := s.kv.Get(SessionsKey)
	if err != nil {
		return nil, err
	}

	sessions, err := decodeSessions(data)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(sessions))
	unique := sessions[:0]
	for _, sess := range sessions {
		if seen[sess.ID] {
			s.logger.Warn("dropping duplicate persisted session", "session_id", sess.ID)
			continue
		}
		seen[sess.ID] = true
		unique = append(unique, sess)
	}
	return unique, nil
}

// Create prepends a fresh session, makes it active and returns its id.
func (s *Store) Create() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.newSession()
	s.sessions = append([]core.Session{sess}, s.sessions...)
	s.active = sess.ID
	s.persist()

	return sess.ID
}

// Switch sets the active pointer. Membership is not checked.
func (s *Store) Switch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = id
	s.persistActive()
}

// Delete removes the session with id. Removing the active session activates the first remaining
// one, or a fresh default session when none remain.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = slices.DeleteFunc(s.sessions, func(sess core.Session) bool {
		return sess.ID == id
	})

	switch {
	case len(s.sessions) == 0:
		s.resetToDefault()
	case id == s.active:
		s.active = s.sessions[0].ID
	}

	s.persist()
}

// UpdateTitle replaces the title of the session with id and bumps its UpdatedAt.
func (s *Store) UpdateTitle(id, newTitle string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return
	}

	s.sessions[i].Title = newTitle
	s.sessions[i].UpdatedAt = s.now().UTC()
	s.persist()
}

// List returns a copy of the collection in stored order (newest first).
func (s *Store) List() []core.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.sessions)
}

func (s *Store) Get(id string) (core.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		return s.sessions[i], true
	}
	return core.Session{}, false
}

// Active returns the active session id, or "" before Initialize.
func (s *Store) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.sessions, func(sess core.Session) bool {
		return sess.ID == id
	})
}

func (s *Store) newSession() core.Session {
	id := s.newID()
	for s.indexOf(id) >= 0 {
		id = s.newID()
	}

	now := s.now().UTC()
	return core.Session{
		ID:        id,
		Title:     title.DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Store) resetToDefault() {
	sess := s.newSession()
	s.sessions = []core.Session{sess}
	s.active = sess.ID
}

func (s *Store) persist() {
	data, err := json.Marshal(s.sessions)
	if err != nil {
		s.logger.Warn("failed to encode sessions", "error", err)
		return
	}

	if err := s.kv.Set(SessionsKey, data); err != nil {
		s.logger.Warn("failed to persist sessions", "error", err)
	}
	s.persistActive()
}

func (s *Store) persistActive() {
	if s.active == "" {
		if err := s.kv.Delete(ActiveKey); err != nil {
			s.logger.Warn("failed to clear active session", "error", err)
		}
		return
	}
	if err := s.kv.Set(ActiveKey, []byte(s.active)); err != nil {
		s.logger.Warn("failed to persist active session", "error", err)
	}
}
