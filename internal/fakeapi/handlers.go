package fakeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

const maxUpload = 10 << 20

type handlers struct {
	store  *Store
	auth   *Auth
	logger *slog.Logger
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

type loginUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type loginData struct {
	Token  string    `json:"token"`
	Type   string    `json:"type"`
	UserID int64     `json:"userId"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
	User   loginUser `json:"user"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	user, token, err := h.auth.Authenticate(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.logger.Error("issue token", "err", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	writeData(w, http.StatusOK, "Login successful", loginData{
		Token:  token,
		Type:   "Bearer",
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		User:   loginUser{ID: user.ID, Email: user.Email, Role: user.Role},
	})
}

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     Role   `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "Email must be valid")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	role := RoleUser
	if caller, ok := h.auth.userFromRequest(r); ok && caller.Role == RoleAdmin && req.Role != "" {
		if !req.Role.valid() {
			writeError(w, http.StatusBadRequest, "Role must be USER or ADMIN")
			return
		}
		role = req.Role
	}

	user, err := h.store.CreateUser(req.Email, req.Password, role)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "Email already exists")
			return
		}
		h.logger.Error("create user", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}
	h.logger.Info("user created", "id", user.ID, "email", user.Email, "role", user.Role)
	writeData(w, http.StatusOK, "User created successfully", user)
}

func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", h.store.ListUsers())
}

func (h *handlers) getUser(w http.ResponseWriter, r *http.Request) {
	caller, _ := UserFromContext(r.Context())
	id := pathID(r)
	if caller.Role != RoleAdmin && caller.ID != id {
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}
	user, err := h.store.UserByID(id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("User not found with id: %d", id))
		return
	}
	writeData(w, http.StatusOK, "", user)
}

func (h *handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	caller, _ := UserFromContext(r.Context())
	id := pathID(r)
	if caller.ID == id {
		writeError(w, http.StatusBadRequest, "You cannot delete your own account")
		return
	}
	if err := h.store.DeleteUser(id); err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("User not found with id: %d", id))
		return
	}
	h.logger.Info("user deleted", "id", id, "by", caller.Email)
	writeData(w, http.StatusOK, "User deleted successfully", nil)
}

func (h *handlers) listReports(w http.ResponseWriter, r *http.Request) {
	caller, _ := UserFromContext(r.Context())
	writeData(w, http.StatusOK, "", h.store.ListReports(caller.ID))
}

func (h *handlers) createReport(w http.ResponseWriter, r *http.Request) {
	caller, _ := UserFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+1<<20)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read file")
		return
	}
	if len(content) > maxUpload {
		writeError(w, http.StatusBadRequest, "File too large")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	typ := strings.TrimSpace(r.FormValue("type"))
	date := strings.TrimSpace(r.FormValue("reportDate"))
	switch {
	case name == "":
		writeError(w, http.StatusBadRequest, "Report name is required")
		return
	case !reportTypes[typ]:
		writeError(w, http.StatusBadRequest, "Report type is required")
		return
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "Report date is required")
		return
	}

	rep := h.store.CreateReport(caller.ID, name, typ, date, hdr.Filename, content)
	h.logger.Info("report created", "id", rep.ID, "owner", caller.ID, "bytes", len(content))
	writeData(w, http.StatusCreated, "Report created successfully", rep)
}

func (h *handlers) getReport(w http.ResponseWriter, r *http.Request) {
	caller, _ := UserFromContext(r.Context())
	rep, err := h.store.GetReport(pathID(r), caller.ID)
	if err != nil {
		h.reportError(w, err, pathID(r))
		return
	}
	writeData(w, http.StatusOK, "", rep)
}

func (h *handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	caller, _ := UserFromContext(r.Context())
	var req struct {
		Status  ReportStatus `json:"status"`
		Summary *string      `json:"summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeError(w, http.StatusBadRequest, "Status is required")
		return
	}
	rep, err := h.store.UpdateStatus(pathID(r), caller.ID, req.Status, req.Summary)
	if err != nil {
		h.reportError(w, err, pathID(r))
		return
	}
	writeData(w, http.StatusOK, "Status updated successfully", rep)
}

func (h *handlers) deleteReport(w http.ResponseWriter, r *http.Request) {
	caller, _ := UserFromContext(r.Context())
	if err := h.store.DeleteReport(pathID(r), caller.ID); err != nil {
		h.reportError(w, err, pathID(r))
		return
	}
	writeData(w, http.StatusOK, "Report deleted successfully", nil)
}

func (h *handlers) reportError(w http.ResponseWriter, err error, id int64) {
	var te *TransitionError
	switch {
	case errors.Is(err, ErrReportNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Report not found with id: %d", id))
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "You don't have permission to access this report")
	case errors.As(err, &te):
		writeError(w, http.StatusBadRequest, te.Error())
	default:
		h.logger.Error("report operation", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
