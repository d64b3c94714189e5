package guard

import (
	"testing"

	"reportdesk/internal/session"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		state session.State
		view  string
		want  Decision
	}{
		{session.StateUnknown, "/", RenderLoading},
		{session.StateUnknown, "/login", RenderLoading},
		{session.StateUnauthenticated, "/", RedirectLogin},
		{session.StateUnauthenticated, "/reports/3", RedirectLogin},
		{session.StateUnauthenticated, "/users", RedirectLogin},
		{session.StateUnauthenticated, "/login", Render},
		{session.StateUnauthenticated, "/register", Render},
		{session.StateAuthenticated, "/login", RedirectHome},
		{session.StateAuthenticated, "/register", RedirectHome},
		{session.StateAuthenticated, "/", Render},
		{session.StateAuthenticated, "/reports/3", Render},
		{session.StateAuthenticated, "/users", Render},
	}
	for _, tt := range tests {
		if got := Decide(tt.state, tt.view); got != tt.want {
			t.Errorf("Decide(%v, %q) = %v, want %v", tt.state, tt.view, got, tt.want)
		}
	}
}

func TestTarget(t *testing.T) {
	if got := Target(RedirectLogin, "/users"); got != "/login" {
		t.Errorf("got %q", got)
	}
	if got := Target(RedirectHome, "/login"); got != "/" {
		t.Errorf("got %q", got)
	}
	if got := Target(Render, "/users"); got != "/users" {
		t.Errorf("got %q", got)
	}
}

func TestResolve(t *testing.T) {
	tests := map[string]string{
		"":                "/",
		"/":               "/",
		"login":           "/login",
		"/login/":         "/login",
		"/register?x=1":   "/register",
		"/users":          "/users",
		"/reports/12":     "/reports/12",
		"/reports/012/":   "/reports/12",
		"/reports/abc":    "/",
		"/reports/-1":     "/",
		"/reports":        "/",
		"/does/not/exist": "/",
	}
	for in, want := range tests {
		if got := Resolve(in); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}
