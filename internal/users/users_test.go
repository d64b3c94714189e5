package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"reportdesk/internal/apierr"
	"reportdesk/internal/httpclient"
	"reportdesk/internal/session"
)

type fixedIdentity struct{ email string }

func (f fixedIdentity) Current() (*session.Session, bool) {
	if f.email == "" {
		return nil, false
	}
	return &session.Session{Email: f.email, Role: session.RoleAdmin}, true
}

func newTestService(t *testing.T, me Identity, h http.HandlerFunc) (*Service, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewService(httpclient.New(srv.URL, 5*time.Second), me, nil), &hits
}

func TestDeleteSelfBlockedWithoutRequest(t *testing.T) {
	svc, hits := newTestService(t, fixedIdentity{"admin@example.com"}, func(w http.ResponseWriter, r *http.Request) {})
	err := svc.Delete(context.Background(), 1, "Admin@Example.com")
	if apierr.KindOf(err) != apierr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if atomic.LoadInt32(hits) != 0 {
		t.Fatalf("server hit %d times", *hits)
	}
}

func TestDeleteOther(t *testing.T) {
	seen := make(chan string, 1)
	svc, _ := newTestService(t, fixedIdentity{"admin@example.com"}, func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Method + " " + r.URL.Path
		_, _ = w.Write([]byte(`{"success":true,"message":"User deleted successfully"}`))
	})
	if err := svc.Delete(context.Background(), 2, "user@example.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := <-seen; got != "DELETE /users/2" {
		t.Errorf("request = %q", got)
	}
}

func TestDeleteForbidden(t *testing.T) {
	svc, _ := newTestService(t, fixedIdentity{"user@example.com"}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"success":false,"message":"Admin access required"}`))
	})
	err := svc.Delete(context.Background(), 1, "admin@example.com")
	if apierr.KindOf(err) != apierr.KindAuth || err.Error() != "Admin access required" {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, hits := newTestService(t, nil, func(w http.ResponseWriter, r *http.Request) {})
	tests := []CreateInput{
		{Email: "", Password: "secret1"},
		{Email: "not-an-email", Password: "secret1"},
		{Email: "Bob <bob@example.com>", Password: "secret1"},
		{Email: "bob@example.com", Password: "12345"},
		{Email: "bob@example.com", Password: "secret1", Role: "ROOT"},
	}
	for _, in := range tests {
		if _, err := svc.Create(context.Background(), in); apierr.KindOf(err) != apierr.KindValidation {
			t.Errorf("%+v: expected validation error, got %v", in, err)
		}
	}
	if atomic.LoadInt32(hits) != 0 {
		t.Fatalf("server hit %d times", *hits)
	}
}

func TestCreateDefaultsRole(t *testing.T) {
	svc, _ := newTestService(t, nil, func(w http.ResponseWriter, r *http.Request) {
		var in CreateInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Role != session.RoleUser {
			t.Errorf("role = %q", in.Role)
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":5,"email":"bob@example.com","role":"USER","createdAt":"2024-02-01T09:00:00"}}`))
	})
	u, err := svc.Create(context.Background(), CreateInput{Email: " bob@example.com ", Password: "secret1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID != 5 || u.Role != session.RoleUser || u.CreatedAt.IsZero() {
		t.Errorf("user = %+v", u)
	}
}

func TestListAndGet(t *testing.T) {
	svc, _ := newTestService(t, nil, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users":
			_, _ = w.Write([]byte(`{"success":true,"data":[{"id":1,"email":"admin@example.com","role":"ADMIN"},{"id":2,"email":"user@example.com","role":"USER"}]}`))
		case "/users/2":
			_, _ = w.Write([]byte(`{"id":2,"email":"user@example.com","role":"USER"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"message":"User not found"}`))
		}
	})
	ctx := context.Background()
	list, err := svc.List(ctx)
	if err != nil || len(list) != 2 || list[0].Role != session.RoleAdmin {
		t.Fatalf("list = %+v, %v", list, err)
	}
	u, err := svc.Get(ctx, 2)
	if err != nil || u.Email != "user@example.com" {
		t.Fatalf("get = %+v, %v", u, err)
	}
	if _, err := svc.Get(ctx, 9); apierr.KindOf(err) != apierr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
