// Package apierr is the client's error taxonomy. Every service returns
// *Error so views can print Message without knowing where it came from.
package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"reportdesk/internal/httpclient"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindServer     Kind = "server"
)

type Error struct {
	Kind    Kind
	Message string
	Code    string
	Status  int
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can write errors.Is(err, apierr.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrServer     = &Error{Kind: KindServer}
)

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

func Auth(msg string) *Error {
	return &Error{Kind: KindAuth, Message: msg}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// serverBody covers both the envelope ({success,message}) and the
// {error: "..."} shape.
type serverBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// Normalize converts any error from the HTTP client into *Error. fallback is
// the message used when the server did not send one.
func Normalize(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var se *httpclient.StatusError
	if errors.As(err, &se) {
		out := &Error{Kind: kindForStatus(se.Status), Status: se.Status, Err: err}
		var body serverBody
		if json.Unmarshal(se.Body, &body) == nil {
			out.Code = body.Code
			out.Message = firstNonEmpty(body.Message, body.Error)
		}
		if out.Message == "" {
			out.Message = firstNonEmpty(fallback, http.StatusText(se.Status))
		}
		return out
	}

	var te *httpclient.TransportError
	if errors.As(err, &te) {
		msg := "Network error. Please check your connection and try again."
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			msg = "The server took too long to respond. Please try again."
		}
		return &Error{Kind: KindServer, Message: msg, Err: err}
	}

	return &Error{Kind: KindServer, Message: firstNonEmpty(fallback, err.Error()), Err: err}
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindServer
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
