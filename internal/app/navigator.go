package app

import (
	"log/slog"
	"sync"

	"reportdesk/internal/guard"
	"reportdesk/internal/logging"
	"reportdesk/internal/session"
)

// SessionSource is what the navigator needs from the session store.
type SessionSource interface {
	State() session.State
	Subscribe(fn func(session.Change)) func()
}

// Navigator tracks the current view and re-applies the guard whenever the
// session changes. It implements httpclient.ViewLocator.
type Navigator struct {
	sessions SessionSource
	logger   *slog.Logger

	mu      sync.Mutex
	current string
	from    string
	history []string

	unsubscribe func()
}

func NewNavigator(sessions SessionSource, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = logging.Discard()
	}
	n := &Navigator{sessions: sessions, logger: logger}
	n.unsubscribe = sessions.Subscribe(func(session.Change) { n.Refresh() })
	return n
}

func (n *Navigator) Close() {
	if n.unsubscribe != nil {
		n.unsubscribe()
	}
}

func (n *Navigator) CurrentView() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// History lists every view the navigator has moved to, oldest first.
func (n *Navigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.history...)
}

// Go requests path. The returned decision says what happened; on a redirect
// the navigator is already on the target view.
func (n *Navigator) Go(path string) guard.Decision {
	view := guard.Resolve(path)
	d := guard.Decide(n.sessions.State(), view)

	n.mu.Lock()
	defer n.mu.Unlock()
	switch d {
	case guard.RedirectLogin:
		n.from = view
	case guard.Render:
		if !guard.Public(view) {
			n.from = ""
		}
	}
	n.moveLocked(guard.Target(d, view))
	return d
}

// Refresh re-applies the guard to the current view. After a login the user
// returns to the view that sent them to the login screen.
func (n *Navigator) Refresh() guard.Decision {
	state := n.sessions.State()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == "" {
		return guard.Render
	}
	d := guard.Decide(state, n.current)
	switch d {
	case guard.RedirectLogin:
		n.from = n.current
		n.moveLocked(guard.ViewLogin)
	case guard.RedirectHome:
		target := guard.ViewHome
		if n.from != "" {
			target = n.from
			n.from = ""
		}
		n.moveLocked(target)
	}
	return d
}

func (n *Navigator) moveLocked(view string) {
	if view == n.current {
		return
	}
	n.logger.Debug("navigate", "from", n.current, "to", view)
	n.current = view
	n.history = append(n.history, view)
}
