package session

import (
	"context"
	"errors"

	"reportdesk/internal/apierr"
	"reportdesk/internal/httpclient"
)

// APIAuthenticator talks to /auth/login and /users.
type APIAuthenticator struct {
	Client *httpclient.Client
}

func NewAPIAuthenticator(c *httpclient.Client) *APIAuthenticator {
	return &APIAuthenticator{Client: c}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

type loginUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// loginPayload accepts {token,user} as well as the flat {token,type,userId,email}.
type loginPayload struct {
	Token  string     `json:"token"`
	UserID int64      `json:"userId"`
	Email  string     `json:"email"`
	Role   Role       `json:"role"`
	User   *loginUser `json:"user"`
}

type loginResponse struct {
	loginPayload
	Data *loginPayload `json:"data"`
}

func (a *APIAuthenticator) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	resp, err := a.Client.Post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, httpclient.Anonymous())
	if err != nil {
		return nil, apierr.Normalize(err, "Login failed. Please check your credentials.")
	}
	var lr loginResponse
	if err := resp.Decode(&lr); err != nil {
		return nil, apierr.Normalize(err, "Login failed: unexpected response from server")
	}
	p := lr.loginPayload
	if p.Token == "" && lr.Data != nil {
		p = *lr.Data
	}
	if p.Token == "" {
		return nil, apierr.Normalize(errors.New("login response has no token"), "Login failed: unexpected response from server")
	}

	sess := &Session{Token: p.Token, UserID: p.UserID, Email: p.Email, Role: p.Role}
	if p.User != nil {
		sess.UserID = p.User.ID
		if p.User.Email != "" {
			sess.Email = p.User.Email
		}
		if p.User.Role != "" {
			sess.Role = p.User.Role
		}
	}
	fillFromToken(sess)
	if sess.Email == "" {
		sess.Email = email
	}
	return sess, nil
}

// CreateAccount always requests the USER role; the server decides whether
// anything else is allowed.
func (a *APIAuthenticator) CreateAccount(ctx context.Context, email, password string) error {
	_, err := a.Client.Post(ctx, "/users", registerRequest{Email: email, Password: password, Role: RoleUser}, httpclient.Anonymous())
	if err != nil {
		return apierr.Normalize(err, "Registration failed. Please try again.")
	}
	return nil
}
