package fakeapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// NewRouter mounts the API under /api, the same prefix the client defaults to.
func NewRouter(logger *slog.Logger, store *Store, auth *Auth) http.Handler {
	h := &handlers{store: store, auth: auth, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	// Open for self-registration; an admin token unlocks the role field.
	api.HandleFunc("/users", h.createUser).Methods(http.MethodPost)

	secured := api.NewRoute().Subrouter()
	secured.Use(auth.Middleware)
	secured.HandleFunc("/users", RequireRole(h.listUsers, RoleAdmin)).Methods(http.MethodGet)
	secured.HandleFunc("/users/{id:[0-9]+}", h.getUser).Methods(http.MethodGet)
	secured.HandleFunc("/users/{id:[0-9]+}", RequireRole(h.deleteUser, RoleAdmin)).Methods(http.MethodDelete)
	secured.HandleFunc("/reports", h.listReports).Methods(http.MethodGet)
	secured.HandleFunc("/reports", h.createReport).Methods(http.MethodPost)
	secured.HandleFunc("/reports/{id:[0-9]+}", h.getReport).Methods(http.MethodGet)
	secured.HandleFunc("/reports/{id:[0-9]+}/status", h.updateStatus).Methods(http.MethodPatch)
	secured.HandleFunc("/reports/{id:[0-9]+}", h.deleteReport).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.Use(requestLogger(logger))
	return withCORS(r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"request_id", r.Header.Get("X-Request-ID"),
			)
		})
	}
}

// withCORS allows a browser front end on another port during local runs.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	env.Timestamp = time.Now().Format(localTimeLayout)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}
