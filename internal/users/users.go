// Package users is the client for the /users resource.
package users

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"reportdesk/internal/apierr"
	"reportdesk/internal/httpclient"
	"reportdesk/internal/logging"
	"reportdesk/internal/reports"
	"reportdesk/internal/session"
)

const MinPasswordLength = 6

type User struct {
	ID        int64             `json:"id"`
	Email     string            `json:"email"`
	Role      session.Role      `json:"role"`
	CreatedAt reports.Timestamp `json:"createdAt"`
}

type CreateInput struct {
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Role     session.Role `json:"role"`
}

// Validate checks the form before it is sent. An empty role means USER.
func (in *CreateInput) Validate() error {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" {
		return apierr.Validation("Email is required")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return apierr.Validation("Email must be valid")
	}
	if in.Password == "" {
		return apierr.Validation("Password is required")
	}
	if len(in.Password) < MinPasswordLength {
		return apierr.Validationf("Password must be at least %d characters", MinPasswordLength)
	}
	if in.Role == "" {
		in.Role = session.RoleUser
	}
	if !in.Role.Valid() {
		return apierr.Validation("Role must be USER or ADMIN")
	}
	return nil
}

// Identity exposes the signed-in user. *session.Store satisfies it.
type Identity interface {
	Current() (*session.Session, bool)
}

type Service struct {
	client *httpclient.Client
	me     Identity
	logger *slog.Logger
}

func NewService(c *httpclient.Client, me Identity, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{client: c, me: me, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	resp, err := s.client.Get(ctx, "/users")
	if err != nil {
		return nil, apierr.Normalize(err, "Failed to load users")
	}
	var out []User
	if err := resp.DecodeData(&out, "users"); err != nil {
		return nil, apierr.Normalize(err, "Failed to load users")
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	resp, err := s.client.Get(ctx, fmt.Sprintf("/users/%d", id))
	if err != nil {
		return nil, apierr.Normalize(err, "Failed to load user")
	}
	var u User
	if err := resp.DecodeData(&u, "user"); err != nil {
		return nil, apierr.Normalize(err, "Failed to load user")
	}
	return &u, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	resp, err := s.client.Post(ctx, "/users", in)
	if err != nil {
		return nil, apierr.Normalize(err, "Failed to create user")
	}
	var u User
	if err := resp.DecodeData(&u, "user"); err != nil {
		return nil, apierr.Normalize(err, "Failed to create user")
	}
	s.logger.Info("user created", "id", u.ID, "email", u.Email, "role", u.Role)
	return &u, nil
}

// Delete removes the user with the given id. email is the target's address;
// deleting the signed-in account is refused without a request.
func (s *Service) Delete(ctx context.Context, id int64, email string) error {
	if s.me != nil {
		if cur, ok := s.me.Current(); ok && strings.EqualFold(cur.Email, strings.TrimSpace(email)) {
			return apierr.Validation("You cannot delete your own account")
		}
	}
	if _, err := s.client.Delete(ctx, fmt.Sprintf("/users/%d", id)); err != nil {
		return apierr.Normalize(err, "Failed to delete user")
	}
	s.logger.Info("user deleted", "id", id, "email", email)
	return nil
}
