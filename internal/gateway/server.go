// Package gateway is the HTTP and WebSocket surface of filltrack.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fillteam/filltrack/internal/auth"
	"github.com/fillteam/filltrack/internal/controller"
	"github.com/fillteam/filltrack/internal/events"
	"github.com/fillteam/filltrack/internal/gateway/ws"
	"github.com/fillteam/filltrack/internal/model"
	"github.com/fillteam/filltrack/internal/store"
)

// Server is the filltrack gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	auth       *auth.Service
	ctrl       *controller.Controller
	host       string
	port       int
}

// NewServer creates a new gateway server over an already-started
// controller.
func NewServer(bus *events.Bus, authSvc *auth.Service, ctrl *controller.Controller, host string, port int) *Server {
	hub := ws.NewHub(bus)

	s := &Server{
		hub:  hub,
		bus:  bus,
		auth: authSvc,
		ctrl: ctrl,
		host: host,
		port: port,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/login", s.handleLogin)
	r.Post("/api/logout", s.handleLogout)
	// The socket only pushes change signals; snapshots still go through
	// the session-gated HTTP API.
	r.Get("/api/ws", hub.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/api/tasks", s.handleListTasks)
		r.Put("/api/tasks/{id}", s.handleSaveTask)
		r.Delete("/api/tasks/{id}", s.handleDeleteTask)
		r.Get("/api/members", s.handleListMembers)
		r.Get("/api/stats", s.handleStats)
		r.Post("/api/briefing", s.handleBriefing)
		r.Get("/api/export.csv", s.handleExport)
	})

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}

	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("filltrack gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// requireSession rejects requests before anyone has logged in.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth.Current() == nil {
			http.Error(w, "not logged in", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// actor returns the team member profile behind the current session.
// nil when the session has no linked profile.
func (s *Server) actor() *model.TeamMember {
	if su := s.auth.Current(); su != nil {
		return su.Member()
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	su, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"user_id":  su.UserID,
		"username": su.Username,
	}
	if m := su.Member(); m != nil {
		resp["member"] = m
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Tasks())
}

func (s *Server) handleSaveTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var task model.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if task.ID == "" {
		task.ID = id
	}
	if task.ID != id {
		http.Error(w, "task id mismatch", http.StatusBadRequest)
		return
	}

	saved, err := s.ctrl.SaveTask(r.Context(), s.actor(), &task)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.ctrl.DeleteTask(r.Context(), s.actor(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Members())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Stats())
}

// handleBriefing runs the morning briefing, or an assignment suggestion
// when the body carries a task.
func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Task *model.Task `json:"task,omitempty"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	var (
		text string
		err  error
	)
	if req.Task != nil {
		text, err = s.ctrl.SuggestAssignment(r.Context(), req.Task)
	} else {
		text, err = s.ctrl.GenerateBriefing(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="filling_tasks.csv"`)
	if err := s.ctrl.ExportCSV(w); err != nil {
		slog.Error("csv export failed", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, store.ErrPermissionDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, controller.ErrSaveInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, controller.ErrBriefingUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
