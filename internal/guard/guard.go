// Package guard decides what to show for a requested view given the current
// session state.
package guard

import (
	"strconv"
	"strings"

	"reportdesk/internal/session"
)

const (
	ViewHome     = "/"
	ViewLogin    = "/login"
	ViewRegister = "/register"
	ViewUsers    = "/users"
)

type Decision int

const (
	Render Decision = iota
	RedirectLogin
	RedirectHome
	RenderLoading
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "render"
	case RedirectLogin:
		return "redirect-login"
	case RedirectHome:
		return "redirect-home"
	case RenderLoading:
		return "loading"
	default:
		return "unknown"
	}
}

// Public reports whether view is reachable without a session.
func Public(view string) bool {
	return view == ViewLogin || view == ViewRegister
}

// Decide is pure: no I/O, no clock.
func Decide(state session.State, view string) Decision {
	switch state {
	case session.StateAuthenticated:
		if Public(view) {
			return RedirectHome
		}
		return Render
	case session.StateUnauthenticated:
		if Public(view) {
			return Render
		}
		return RedirectLogin
	default:
		return RenderLoading
	}
}

// Target returns the view a redirect decision points at, or view itself.
func Target(d Decision, view string) string {
	switch d {
	case RedirectLogin:
		return ViewLogin
	case RedirectHome:
		return ViewHome
	default:
		return view
	}
}

// ReportView is the detail view path for a report id.
func ReportView(id int64) string {
	return "/reports/" + strconv.FormatInt(id, 10)
}

// ReportID extracts the id from a /reports/{id} view.
func ReportID(view string) (int64, bool) {
	rest, ok := strings.CutPrefix(view, "/reports/")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Resolve maps a requested path to a known view. Anything unrecognised falls
// back to home.
func Resolve(path string) string {
	p := strings.TrimSpace(path)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return ViewHome
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	switch p {
	case ViewHome, ViewLogin, ViewRegister, ViewUsers:
		return p
	}
	if id, ok := ReportID(p); ok {
		return ReportView(id)
	}
	return ViewHome
}
