package app

import (
	"errors"
	"testing"
	"time"

	"reportdesk/internal/apierr"
	"reportdesk/internal/guard"
	"reportdesk/internal/reports"
	"reportdesk/internal/session"
)

type fakeSessions struct {
	state session.State
	subs  []func(session.Change)
}

func (f *fakeSessions) State() session.State { return f.state }

func (f *fakeSessions) Subscribe(fn func(session.Change)) func() {
	f.subs = append(f.subs, fn)
	return func() {}
}

func (f *fakeSessions) set(s session.State) {
	from := f.state
	f.state = s
	for _, fn := range f.subs {
		fn(session.Change{From: from, To: s})
	}
}

func TestNavigatorFollowsSession(t *testing.T) {
	fs := &fakeSessions{}
	nav := NewNavigator(fs, nil)

	if d := nav.Go("/users"); d != guard.RenderLoading {
		t.Fatalf("unknown state decision = %v", d)
	}
	fs.set(session.StateUnauthenticated)
	if nav.CurrentView() != "/login" {
		t.Fatalf("view = %q", nav.CurrentView())
	}
	fs.set(session.StateAuthenticated)
	if nav.CurrentView() != "/users" {
		t.Fatalf("view after login = %q", nav.CurrentView())
	}
	fs.set(session.StateUnauthenticated)
	fs.set(session.StateUnauthenticated)
	want := []string{"/users", "/login", "/users", "/login"}
	got := nav.History()
	if len(got) != len(want) {
		t.Fatalf("history = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("history = %v, want %v", got, want)
		}
	}
}

func TestNavigatorCatchAll(t *testing.T) {
	fs := &fakeSessions{state: session.StateAuthenticated}
	nav := NewNavigator(fs, nil)
	if d := nav.Go("/nowhere"); d != guard.Render || nav.CurrentView() != "/" {
		t.Fatalf("decision %v view %q", d, nav.CurrentView())
	}
	if d := nav.Go("/register"); d != guard.RedirectHome || nav.CurrentView() != "/" {
		t.Fatalf("decision %v view %q", d, nav.CurrentView())
	}
}

func TestControlDropsSecondTrigger(t *testing.T) {
	var c Control
	var inner error
	err := c.Run(func() error {
		if !c.Busy() {
			t.Error("control should be busy inside Run")
		}
		inner = c.Run(func() error { return nil })
		return nil
	})
	if err != nil {
		t.Fatalf("outer: %v", err)
	}
	if !errors.Is(inner, ErrBusy) {
		t.Fatalf("inner = %v", inner)
	}
	if c.Busy() {
		t.Fatal("control still busy")
	}
	if err := c.Run(func() error { return nil }); err != nil {
		t.Fatalf("after release: %v", err)
	}
}

func TestRegisterFormValidate(t *testing.T) {
	tests := []struct {
		form RegisterForm
		msg  string
	}{
		{RegisterForm{Email: "a@b.c", Password: "secret1", ConfirmPassword: "secret2"}, "Passwords do not match"},
		{RegisterForm{Email: "a@b.c", Password: "12345", ConfirmPassword: "12345"}, "Password must be at least 6 characters"},
		{RegisterForm{Password: "secret1", ConfirmPassword: "secret1"}, "Email and password are required"},
		{RegisterForm{Email: "a@b.c", Password: "secret1", ConfirmPassword: "secret1"}, ""},
	}
	for _, tt := range tests {
		err := tt.form.Validate()
		if tt.msg == "" {
			if err != nil {
				t.Errorf("%+v: unexpected %v", tt.form, err)
			}
			continue
		}
		if apierr.KindOf(err) != apierr.KindValidation || err.Error() != tt.msg {
			t.Errorf("%+v: got %v, want %q", tt.form, err, tt.msg)
		}
	}
}

func TestUploadFormMissingFile(t *testing.T) {
	if _, _, err := (UploadForm{Path: "/does/not/exist.pdf"}).Open(); apierr.KindOf(err) != apierr.KindValidation {
		t.Fatalf("missing file: %v", err)
	}
	if _, _, err := (UploadForm{Path: t.TempDir()}).Open(); apierr.KindOf(err) != apierr.KindValidation {
		t.Fatalf("directory: %v", err)
	}
	in, f, err := (UploadForm{Type: "imaging"}).Open()
	if err != nil || f != nil || in.File != nil || in.Type != reports.TypeImaging {
		t.Fatalf("no path: %+v %v %v", in, f, err)
	}
}

func TestDisplayHelpers(t *testing.T) {
	ts := time.Date(2024, 1, 15, 14, 5, 0, 0, time.UTC)
	if got := FormatDate(ts); got != "Jan 15, 2024" {
		t.Errorf("FormatDate = %q", got)
	}
	if got := FormatDateTime(ts); got != "Jan 15, 2024, 02:05 PM" {
		t.Errorf("FormatDateTime = %q", got)
	}
	if FormatDate(time.Time{}) != "-" || FormatDateTime(time.Time{}) != "-" {
		t.Errorf("zero times should render as -")
	}
	if got := FormatStatus(reports.StatusProcessing); got != "processing" {
		t.Errorf("FormatStatus = %q", got)
	}
	if OrDash("  ") != "-" || OrDash("x") != "x" {
		t.Errorf("OrDash")
	}
	if ActionLabel(reports.StatusCompleted) != "-" || ActionLabel(reports.StatusUploaded) != "Start Processing" {
		t.Errorf("ActionLabel")
	}
}
