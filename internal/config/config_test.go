package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REPORTDESK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8080/api" {
		t.Errorf("base url = %q", cfg.APIBaseURL)
	}
	if cfg.APITimeout != 30*time.Second {
		t.Errorf("timeout = %v", cfg.APITimeout)
	}
	if cfg.SessionBackend != BackendFile {
		t.Errorf("backend = %q", cfg.SessionBackend)
	}
	if cfg.MaxFileSize != 10<<20 {
		t.Errorf("max file size = %d", cfg.MaxFileSize)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	profile := []byte(`
api_base_url: https://reports.example.com/api
api_timeout: 5s
session_backend: redis
allowed_file_types: [".pdf"]
`)
	if err := os.WriteFile(path, profile, 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	t.Setenv("REPORTDESK_CONFIG", path)
	t.Setenv("REPORTDESK_API_BASE_URL", "https://override.example.com/api/")
	t.Setenv("REPORTDESK_API_TIMEOUT", "12000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "https://override.example.com/api" {
		t.Errorf("env should win and be trimmed, got %q", cfg.APIBaseURL)
	}
	if cfg.APITimeout != 12*time.Second {
		t.Errorf("timeout = %v, want 12s", cfg.APITimeout)
	}
	if cfg.SessionBackend != BackendRedis {
		t.Errorf("backend = %q, want redis from profile", cfg.SessionBackend)
	}
	if len(cfg.AllowedFileTypes) != 1 || cfg.AllowedFileTypes[0] != ".pdf" {
		t.Errorf("allowed types = %v", cfg.AllowedFileTypes)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("REPORTDESK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("REPORTDESK_SESSION_BACKEND", "floppy")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestParseTimeout(t *testing.T) {
	cases := map[string]time.Duration{
		"30000": 30 * time.Second,
		"45s":   45 * time.Second,
		"1m":    time.Minute,
	}
	for in, want := range cases {
		got, err := parseTimeout(in)
		if err != nil {
			t.Fatalf("parseTimeout(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("parseTimeout(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	if got := expandHome("~/.reportdesk/session.json"); got != filepath.Join("/home/tester", ".reportdesk", "session.json") {
		t.Errorf("got %q", got)
	}
	if got := expandHome("/var/lib/session.json"); got != "/var/lib/session.json" {
		t.Errorf("absolute path changed: %q", got)
	}
}

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("MOCKAPI_JWT_SECRET", "")
	t.Setenv("MOCKAPI_HTTP_ADDR", ":9090")
	cfg := LoadServer()
	if cfg.HTTPAddr != ":9090" || cfg.JWTSecret == "" || cfg.UsersPath != "config/users.yaml" {
		t.Errorf("server config = %+v", cfg)
	}
}
