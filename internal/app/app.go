// Package app wires the client together and holds the screens the CLI
// drives: dashboard, report detail and user management, plus login and
// registration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reportdesk/internal/apierr"
	"reportdesk/internal/config"
	"reportdesk/internal/db"
	"reportdesk/internal/guard"
	"reportdesk/internal/httpclient"
	"reportdesk/internal/logging"
	"reportdesk/internal/reports"
	"reportdesk/internal/session"
	"reportdesk/internal/users"
)

var ErrLoginRequired = apierr.Auth("Please log in to continue")

type App struct {
	Client   *httpclient.Client
	Sessions *session.Store
	Nav      *Navigator
	Reports  *reports.Service
	Users    *users.Service

	logger  *slog.Logger
	closers []func() error
	off     func()

	login    Control
	register Control
}

// New opens the configured session backend and builds the App on top of it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	persist, closer, err := OpenPersister(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := Build(cfg, persist, logger)
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	return a, nil
}

// OpenPersister returns the session persister for cfg.SessionBackend and a
// func releasing its connection, if any.
func OpenPersister(ctx context.Context, cfg config.Config) (session.Persister, func() error, error) {
	switch cfg.SessionBackend {
	case config.BackendPostgres:
		conn, err := db.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open session database: %w", err)
		}
		if err := db.RunMigrations(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return session.NewSQLStore(conn, cfg.SessionProfile), conn.Close, nil
	case config.BackendRedis:
		rdb := session.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return session.NewRedisStore(rdb, cfg.SessionProfile), rdb.Close, nil
	default:
		return session.NewFileStore(cfg.SessionPath), nil, nil
	}
}

// Build assembles the client around an already opened persister.
func Build(cfg config.Config, persist session.Persister, logger *slog.Logger) *App {
	if logger == nil {
		logger = logging.Discard()
	}
	client := httpclient.New(cfg.APIBaseURL, cfg.APITimeout, httpclient.WithLogger(logger))
	store := session.NewStore(session.NewAPIAuthenticator(client), persist, logger)
	nav := NewNavigator(store, logger)
	client.SetTokenSource(store)
	client.SetViewLocator(nav)

	a := &App{
		Client:   client,
		Sessions: store,
		Nav:      nav,
		Reports:  reports.NewService(client, reports.Limits{MaxFileSize: cfg.MaxFileSize, AllowedTypes: cfg.AllowedFileTypes}, logger),
		Users:    users.NewService(client, store, logger),
		logger:   logger,
	}
	a.off = client.OnUnauthorized(a.handleUnauthorized)
	return a
}

// handleUnauthorized clears the session after a 401. The navigator sees the
// change and moves to the login view; the Refresh afterwards is a no-op
// unless nothing was subscribed.
func (a *App) handleUnauthorized(ev httpclient.UnauthorizedEvent) {
	a.logger.Warn("session rejected by server", "method", ev.Method, "path", ev.Path, "view", ev.View)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Sessions.Expire(ctx); err != nil {
		a.logger.Warn("clear session after 401", "err", err)
	}
	a.Nav.Refresh()
}

func (a *App) Close() error {
	if a.off != nil {
		a.off()
	}
	a.Nav.Close()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Start resolves the persisted session if that has not happened yet.
func (a *App) Start(ctx context.Context) session.State {
	if st := a.Sessions.State(); st != session.StateUnknown {
		return st
	}
	return a.Sessions.Restore(ctx)
}

// open navigates to view and reports whether it may be rendered.
func (a *App) open(ctx context.Context, view string) error {
	a.Start(ctx)
	switch a.Nav.Go(view) {
	case guard.RedirectLogin:
		return ErrLoginRequired
	case guard.RedirectHome:
		cur, _ := a.Sessions.Current()
		email := ""
		if cur != nil {
			email = cur.Email
		}
		return apierr.Validationf("Already logged in as %s. Log out first.", email)
	case guard.RenderLoading:
		return apierr.Validation("Session is still loading")
	}
	return nil
}

func (a *App) Login(ctx context.Context, f LoginForm) (*session.Session, error) {
	if err := a.open(ctx, guard.ViewLogin); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var sess *session.Session
	err := a.login.Run(func() error {
		var err error
		sess, err = a.Sessions.Login(ctx, f.Email, f.Password)
		return err
	})
	return sess, err
}

func (a *App) Register(ctx context.Context, f RegisterForm) (*session.Session, error) {
	if err := a.open(ctx, guard.ViewRegister); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var sess *session.Session
	err := a.register.Run(func() error {
		var err error
		sess, err = a.Sessions.Register(ctx, f.Email, f.Password)
		return err
	})
	return sess, err
}

// Logout always succeeds from the user's point of view; a failure to remove
// the persisted copy is logged by the store and returned for the caller to
// report.
func (a *App) Logout(ctx context.Context) error {
	a.Start(ctx)
	return a.Sessions.Logout(ctx)
}

// Whoami returns the signed-in session.
func (a *App) Whoami(ctx context.Context) (*session.Session, error) {
	if err := a.open(ctx, guard.ViewHome); err != nil {
		return nil, err
	}
	cur, ok := a.Sessions.Current()
	if !ok {
		return nil, ErrLoginRequired
	}
	return cur, nil
}
