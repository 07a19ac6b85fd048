package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mininotes/mininotes-go/internal/crypto"
	"github.com/mininotes/mininotes-go/internal/model"
	"github.com/mininotes/mininotes-go/internal/repository"
)

// ErrLogoutIncomplete means the in-memory session was cleared but the
// persisted token could not be removed, so later requests may still carry it.
var ErrLogoutIncomplete = errors.New("logout incomplete: persisted session was not cleared")

// Authenticator exchanges credentials for a token at the gateway.
type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials) (model.AuthResponse, error)
	Register(ctx context.Context, creds model.Credentials) (model.AuthResponse, error)
}

// SessionStorage is the durable home of the (token, user) pair.
type SessionStorage interface {
	Save(ctx context.Context, token string, user []byte) error
	Load(ctx context.Context) (string, []byte, error)
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// SessionReason tells subscribers why the session changed.
type SessionReason string

const (
	ReasonLogin    SessionReason = "login"
	ReasonRegister SessionReason = "register"
	ReasonRestore  SessionReason = "restore"
	ReasonLogout   SessionReason = "logout"
	ReasonExpired  SessionReason = "expired"
)

// SessionEvent is delivered to subscribers after every session change.
// Session is nil when the session was cleared.
type SessionEvent struct {
	Session *model.Session
	Reason  SessionReason
}

// Cleared reports whether the event ended the session.
func (e SessionEvent) Cleared() bool {
	return e.Session == nil
}

type sessionListener struct {
	id int
	fn func(SessionEvent)
}

// SessionStore owns the authentication lifecycle. Durable storage is the
// source of truth for the bearer token; the in-memory session mirrors it.
type SessionStore struct {
	auth    Authenticator
	storage SessionStorage
	now     func() time.Time

	mu        sync.Mutex
	session   *model.Session
	listeners []sessionListener
	nextID    int
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(auth Authenticator, storage SessionStorage) *SessionStore {
	return &SessionStore{
		auth:    auth,
		storage: storage,
		now:     time.Now,
	}
}

// Login authenticates against the gateway and persists the resulting session.
// A rejected login leaves all state untouched.
func (s *SessionStore) Login(ctx context.Context, creds model.Credentials) (model.Session, error) {
	resp, err := s.auth.Login(ctx, creds)
	if err != nil {
		return model.Session{}, err
	}
	return s.establish(ctx, resp, ReasonLogin)
}

// Register creates an account at the gateway and persists the resulting session.
func (s *SessionStore) Register(ctx context.Context, creds model.Credentials) (model.Session, error) {
	resp, err := s.auth.Register(ctx, creds)
	if err != nil {
		return model.Session{}, err
	}
	return s.establish(ctx, resp, ReasonRegister)
}

func (s *SessionStore) establish(ctx context.Context, resp model.AuthResponse, reason SessionReason) (model.Session, error) {
	userJSON, err := json.Marshal(resp.User)
	if err != nil {
		return model.Session{}, fmt.Errorf("encode user: %w", err)
	}
	if err := s.storage.Save(ctx, resp.Token, userJSON); err != nil {
		return model.Session{}, fmt.Errorf("persist session: %w", err)
	}

	sess := model.Session{User: resp.User, Token: resp.Token}
	s.mu.Lock()
	s.session = &sess
	s.mu.Unlock()

	log.Info().Int64("user_id", sess.User.ID).Str("reason", string(reason)).Msg("session established")
	s.emit(SessionEvent{Session: copySession(&sess), Reason: reason})
	return sess, nil
}

// Logout clears the persisted and in-memory session. It is safe to call
// repeatedly. The in-memory session is cleared even if storage fails; a clear
// that still fails after one retry is reported as ErrLogoutIncomplete.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	had := s.session != nil
	s.session = nil
	s.mu.Unlock()

	if !had {
		if token, err := s.storage.Token(ctx); err == nil && token != "" {
			had = true
		}
	}

	err := s.clearStorage(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrLogoutIncomplete, err)
	}

	if had {
		log.Info().Msg("logged out")
		s.emit(SessionEvent{Reason: ReasonLogout})
	}
	return err
}

// RestoreSession loads a persisted session at startup. It returns nil when
// nothing usable is stored; incomplete, malformed or expired entries are
// cleared on the way.
func (s *SessionStore) RestoreSession(ctx context.Context) (*model.Session, error) {
	token, userJSON, err := s.storage.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		return nil, nil
	case errors.Is(err, repository.ErrPartialSession):
		s.discard(ctx, "incomplete session")
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load session: %w", err)
	}

	var user model.User
	if err := json.Unmarshal(userJSON, &user); err != nil || user.ID == 0 {
		s.discard(ctx, "malformed user record")
		return nil, nil
	}

	if crypto.TokenExpired(token, s.now()) {
		s.discard(ctx, "expired token")
		return nil, nil
	}

	sess := model.Session{User: user, Token: token}
	s.mu.Lock()
	s.session = &sess
	s.mu.Unlock()

	log.Debug().Int64("user_id", user.ID).Msg("session restored")
	s.emit(SessionEvent{Session: copySession(&sess), Reason: ReasonRestore})
	return copySession(&sess), nil
}

func (s *SessionStore) discard(ctx context.Context, why string) {
	log.Warn().Str("reason", why).Msg("discarding persisted session")
	if err := s.storage.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("failed to clear persisted session")
	}
}

// Token returns the bearer token from durable storage at call time.
func (s *SessionStore) Token(ctx context.Context) (string, error) {
	return s.storage.Token(ctx)
}

// HandleUnauthorized tears the session down after the gateway answered an
// authenticated call with 401. Subscribers receive ReasonExpired.
func (s *SessionStore) HandleUnauthorized(ctx context.Context) {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()

	s.clearStorage(ctx)

	log.Warn().Msg("gateway rejected the session token")
	s.emit(SessionEvent{Reason: ReasonExpired})
}

// clearStorage removes the persisted pair, retrying once. Token() reads
// storage, so a token left behind would still be sent with requests.
func (s *SessionStore) clearStorage(ctx context.Context) error {
	err := s.storage.Clear(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to clear persisted session, retrying")
		err = s.storage.Clear(ctx)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to clear persisted session")
	}
	return err
}

// IsAuthenticated reports whether an in-memory session exists.
func (s *SessionStore) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// User returns the signed-in user.
func (s *SessionStore) User() (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return model.User{}, false
	}
	return s.session.User, true
}

// Current returns a copy of the in-memory session, or nil.
func (s *SessionStore) Current() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySession(s.session)
}

// Subscribe registers fn for session changes and returns a function that
// removes it. Listeners run on the goroutine that caused the change.
func (s *SessionStore) Subscribe(fn func(SessionEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, sessionListener{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *SessionStore) emit(evt SessionEvent) {
	s.mu.Lock()
	listeners := append([]sessionListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(evt)
	}
}

func copySession(sess *model.Session) *model.Session {
	if sess == nil {
		return nil
	}
	c := *sess
	return &c
}
