package fakeapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

type testAPI struct {
	t     *testing.T
	url   string
	store *Store
	auth  *Auth
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := NewStore(WithHashCost(bcrypt.MinCost))
	if _, err := store.CreateUser("admin@example.com", "admin123", RoleAdmin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if _, err := store.CreateUser("user@example.com", "password123", RoleUser); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	auth := NewAuth(store, "test-secret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(logger, store, auth))
	t.Cleanup(srv.Close)
	return &testAPI{t: t, url: srv.URL + "/api", store: store, auth: auth}
}

type result struct {
	Status  int
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *testAPI) do(method, path, token, contentType string, body io.Reader) result {
	a.t.Helper()
	req, err := http.NewRequest(method, a.url+path, body)
	if err != nil {
		a.t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var res result
	_ = json.NewDecoder(resp.Body).Decode(&res)
	res.Status = resp.StatusCode
	return res
}

func (a *testAPI) json(method, path, token string, v any) result {
	a.t.Helper()
	var body io.Reader
	if v != nil {
		data, _ := json.Marshal(v)
		body = bytes.NewReader(data)
	}
	return a.do(method, path, token, "application/json", body)
}

func (a *testAPI) login(email, password string) string {
	a.t.Helper()
	res := a.json(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	if res.Status != http.StatusOK {
		a.t.Fatalf("login %s: %d %s", email, res.Status, res.Message)
	}
	var d loginData
	if err := json.Unmarshal(res.Data, &d); err != nil {
		a.t.Fatalf("decode login: %v", err)
	}
	return d.Token
}

func (a *testAPI) upload(token, fileName, name, typ, date string) result {
	a.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if fileName != "" {
		fw, _ := w.CreateFormFile("file", fileName)
		_, _ = fw.Write([]byte("content"))
	}
	_ = w.WriteField("name", name)
	_ = w.WriteField("type", typ)
	_ = w.WriteField("reportDate", date)
	_ = w.Close()
	return a.do(http.MethodPost, "/reports", token, w.FormDataContentType(), &buf)
}

func TestLogin(t *testing.T) {
	api := newTestAPI(t)
	tok := api.login("user@example.com", "password123")
	claims, err := api.auth.ParseToken(tok)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Email != "user@example.com" || claims.Role != RoleUser || claims.UserID == 0 {
		t.Errorf("claims = %+v", claims)
	}

	res := api.json(http.MethodPost, "/auth/login", "", map[string]string{"email": "user@example.com", "password": "nope"})
	if res.Status != http.StatusUnauthorized || res.Message != "Invalid email or password" {
		t.Fatalf("bad password: %d %q", res.Status, res.Message)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/reports", "/users", "/reports/1", "/users/1"} {
		if res := api.json(http.MethodGet, path, "", nil); res.Status != http.StatusUnauthorized {
			t.Errorf("GET %s without token = %d", path, res.Status)
		}
	}
	if res := api.json(http.MethodGet, "/reports", "garbage", nil); res.Status != http.StatusUnauthorized {
		t.Errorf("garbage token = %d", res.Status)
	}
}

func TestSelfRegistrationForcesUserRole(t *testing.T) {
	api := newTestAPI(t)
	res := api.json(http.MethodPost, "/users", "", map[string]string{"email": "eve@example.com", "password": "secret1", "role": "ADMIN"})
	if res.Status != http.StatusOK {
		t.Fatalf("register: %d %s", res.Status, res.Message)
	}
	u, err := api.store.UserByEmail("eve@example.com")
	if err != nil || u.Role != RoleUser {
		t.Fatalf("registered user = %+v, %v", u, err)
	}

	res = api.json(http.MethodPost, "/users", "", map[string]string{"email": "eve@example.com", "password": "secret1"})
	if res.Status != http.StatusBadRequest || res.Message != "Email already exists" {
		t.Fatalf("duplicate: %d %q", res.Status, res.Message)
	}
	res = api.json(http.MethodPost, "/users", "", map[string]string{"email": "short@example.com", "password": "12345"})
	if res.Status != http.StatusBadRequest {
		t.Fatalf("short password: %d", res.Status)
	}
}

func TestAdminUserManagement(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login("admin@example.com", "admin123")
	user := api.login("user@example.com", "password123")

	if res := api.json(http.MethodGet, "/users", user, nil); res.Status != http.StatusForbidden {
		t.Fatalf("user listing users = %d", res.Status)
	}
	res := api.json(http.MethodPost, "/users", admin, map[string]string{"email": "boss@example.com", "password": "secret1", "role": "ADMIN"})
	if res.Status != http.StatusOK {
		t.Fatalf("admin create: %d %s", res.Status, res.Message)
	}
	var created User
	_ = json.Unmarshal(res.Data, &created)
	if created.Role != RoleAdmin {
		t.Errorf("created role = %s", created.Role)
	}

	res = api.json(http.MethodGet, "/users", admin, nil)
	var list []User
	_ = json.Unmarshal(res.Data, &list)
	if len(list) != 3 {
		t.Fatalf("users = %d", len(list))
	}

	adminUser, _ := api.store.UserByEmail("admin@example.com")
	if res := api.json(http.MethodDelete, "/users/"+itoa(adminUser.ID), admin, nil); res.Status != http.StatusBadRequest {
		t.Errorf("self delete = %d", res.Status)
	}
	if res := api.json(http.MethodDelete, "/users/"+itoa(created.ID), admin, nil); res.Status != http.StatusOK {
		t.Errorf("delete = %d %s", res.Status, res.Message)
	}
	if res := api.json(http.MethodDelete, "/users/999", admin, nil); res.Status != http.StatusNotFound {
		t.Errorf("delete missing = %d", res.Status)
	}
}

func TestDeletedUserTokenRejected(t *testing.T) {
	api := newTestAPI(t)
	tok := api.login("user@example.com", "password123")
	u, _ := api.store.UserByEmail("user@example.com")
	if err := api.store.DeleteUser(u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if res := api.json(http.MethodGet, "/reports", tok, nil); res.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d", res.Status)
	}
}

func TestReportLifecycle(t *testing.T) {
	api := newTestAPI(t)
	user := api.login("user@example.com", "password123")
	admin := api.login("admin@example.com", "admin123")

	if res := api.upload(user, "", "Blood", "LAB_REPORT", "2024-01-15"); res.Status != http.StatusBadRequest {
		t.Fatalf("upload without file = %d", res.Status)
	}
	if res := api.upload(user, "a.pdf", "Blood", "XRAY", "2024-01-15"); res.Status != http.StatusBadRequest {
		t.Fatalf("upload bad type = %d", res.Status)
	}
	res := api.upload(user, "blood.pdf", "Blood", "LAB_REPORT", "2024-01-15")
	if res.Status != http.StatusCreated {
		t.Fatalf("upload = %d %s", res.Status, res.Message)
	}
	var rep struct {
		ID         int64        `json:"id"`
		Status     ReportStatus `json:"status"`
		FilePath   string       `json:"filePath"`
		ReportDate string       `json:"reportDate"`
		CreatedAt  string       `json:"createdAt"`
	}
	_ = json.Unmarshal(res.Data, &rep)
	if rep.Status != StatusUploaded || !strings.HasSuffix(rep.FilePath, ".pdf") || rep.ReportDate != "2024-01-15" {
		t.Errorf("report = %+v", rep)
	}
	if strings.ContainsAny(rep.CreatedAt, "Z+") || len(rep.CreatedAt) != len(localTimeLayout) {
		t.Errorf("createdAt should be zone-less, got %q", rep.CreatedAt)
	}
	path := "/reports/" + itoa(rep.ID)

	if res := api.json(http.MethodGet, path, admin, nil); res.Status != http.StatusForbidden {
		t.Errorf("other user's report = %d", res.Status)
	}
	res = api.json(http.MethodPatch, path+"/status", user, map[string]string{"status": "COMPLETED"})
	if res.Status != http.StatusBadRequest || res.Message != "Cannot transition from UPLOADED to COMPLETED" {
		t.Errorf("skip transition = %d %q", res.Status, res.Message)
	}
	res = api.json(http.MethodPatch, path+"/status", user, map[string]string{"status": "PROCESSING", "summary": "looks fine"})
	if res.Status != http.StatusOK {
		t.Fatalf("advance = %d %s", res.Status, res.Message)
	}
	got, err := api.store.GetReport(rep.ID, mustUser(t, api, "user@example.com").ID)
	if err != nil || got.Status != StatusProcessing || got.Summary == nil || *got.Summary != "looks fine" {
		t.Fatalf("stored = %+v, %v", got, err)
	}

	res = api.json(http.MethodGet, "/reports", user, nil)
	var list []Report
	_ = json.Unmarshal(res.Data, &list)
	if len(list) != 1 {
		t.Fatalf("list = %d", len(list))
	}
	if res := api.json(http.MethodGet, "/reports", admin, nil); !bytes.Equal(bytes.TrimSpace(res.Data), []byte("[]")) {
		t.Errorf("admin sees %s", res.Data)
	}

	if res := api.json(http.MethodDelete, path, user, nil); res.Status != http.StatusOK {
		t.Fatalf("delete = %d", res.Status)
	}
	if res := api.json(http.MethodGet, path, user, nil); res.Status != http.StatusNotFound {
		t.Fatalf("get deleted = %d", res.Status)
	}
}

func TestSeedFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	data := "users:\n  - email: admin@example.com\n    password: admin123\n    role: ADMIN\n  - email: user@example.com\n    password: password123\n  - email: \"\"\n    password: x\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := NewStore(WithHashCost(bcrypt.MinCost))
	if err := store.SeedFromFile(path); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.SeedFromFile(path); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	users := store.ListUsers()
	if len(users) != 2 {
		t.Fatalf("users = %+v", users)
	}
	if users[0].Role != RoleAdmin || users[1].Role != RoleUser {
		t.Errorf("roles = %s %s", users[0].Role, users[1].Role)
	}
}

func mustUser(t *testing.T, api *testAPI, email string) *User {
	t.Helper()
	u, err := api.store.UserByEmail(email)
	if err != nil {
		t.Fatalf("user %s: %v", email, err)
	}
	return u
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
