// Package session owns the client's authenticated identity: login, register,
// logout, restore from durable storage and change notification.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"reportdesk/internal/apierr"
	"reportdesk/internal/logging"
)

var ErrNoSession = errors.New("no persisted session")

// Authenticator is the external auth collaborator.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*Session, error)
	CreateAccount(ctx context.Context, email, password string) error
}

// Persister is durable storage for a single session. Load returns
// ErrNoSession when nothing is stored.
type Persister interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

type Store struct {
	auth    Authenticator
	persist Persister
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	state   State
	current *Session
	subs    map[int]func(Change)
	nextSub int
}

func NewStore(auth Authenticator, persist Persister, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{
		auth:    auth,
		persist: persist,
		logger:  logger,
		now:     time.Now,
		state:   StateUnknown,
		subs:    make(map[int]func(Change)),
	}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Current returns a copy of the active session.
func (s *Store) Current() (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, false
	}
	cp := *s.current
	return &cp, true
}

// Token implements httpclient.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// Subscribe registers fn for every state change and returns an unsubscribe func.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apierr.Validation("Email and password are required")
	}
	sess, err := s.auth.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if sess.Role == "" {
		sess.Role = RoleUser
	}
	if err := s.persist.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	s.set(StateAuthenticated, sess, "login")
	s.logger.Info("logged in", "email", sess.Email, "role", sess.Role)
	cp := *sess
	return &cp, nil
}

// Register creates a USER account and then logs in with the same credentials.
func (s *Store) Register(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apierr.Validation("Email and password are required")
	}
	if err := s.auth.CreateAccount(ctx, email, password); err != nil {
		return nil, err
	}
	s.logger.Info("account created", "email", email)
	return s.Login(ctx, email, password)
}

// Logout clears the persisted session. Calling it repeatedly is harmless.
func (s *Store) Logout(ctx context.Context) error {
	return s.clear(ctx, "logout")
}

// Expire is the clear triggered by a 401 from the API.
func (s *Store) Expire(ctx context.Context) error {
	return s.clear(ctx, "expired")
}

func (s *Store) clear(ctx context.Context, reason string) error {
	err := s.persist.Clear(ctx)
	if err != nil {
		s.logger.Warn("clear persisted session", "err", err, "reason", reason)
	}
	s.set(StateUnauthenticated, nil, reason)
	return err
}

// Restore resolves the Unknown state from durable storage. Missing, unreadable
// or expired sessions all resolve to Unauthenticated.
func (s *Store) Restore(ctx context.Context) State {
	sess, err := s.persist.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSession):
		s.set(StateUnauthenticated, nil, "restore")
		return StateUnauthenticated
	case err != nil:
		s.logger.Warn("discarding unreadable session", "err", err)
		_ = s.persist.Clear(ctx)
		s.set(StateUnauthenticated, nil, "restore")
		return StateUnauthenticated
	}

	if sess == nil || sess.Token == "" {
		s.set(StateUnauthenticated, nil, "restore")
		return StateUnauthenticated
	}
	fillFromToken(sess)
	if sess.Expired(s.now()) {
		s.logger.Info("persisted session expired", "email", sess.Email, "expired_at", sess.ExpiresAt)
		_ = s.persist.Clear(ctx)
		s.set(StateUnauthenticated, nil, "restore")
		return StateUnauthenticated
	}
	s.set(StateAuthenticated, sess, "restore")
	return StateAuthenticated
}

func (s *Store) set(state State, sess *Session, reason string) {
	s.mu.Lock()
	from := s.state
	s.state = state
	s.current = sess
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	if from == state && state == StateUnauthenticated {
		return
	}
	ch := Change{From: from, To: state, Reason: reason}
	if sess != nil {
		cp := *sess
		ch.Session = &cp
	}
	for _, fn := range fns {
		fn(ch)
	}
}
