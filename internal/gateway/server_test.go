package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fillteam/filltrack/internal/auth"
	"github.com/fillteam/filltrack/internal/controller"
	"github.com/fillteam/filltrack/internal/events"
	"github.com/fillteam/filltrack/internal/model"
	"github.com/fillteam/filltrack/internal/notify"
	"github.com/fillteam/filltrack/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus(64)
	t.Cleanup(bus.Close)

	tasks := store.NewTaskStore(db, bus)
	members := store.NewMemberStore(db, bus)
	users := store.NewUserStore(db)

	ctx := context.Background()
	for _, m := range []*model.TeamMember{
		{ID: "m1", Name: "Ana Ruiz", Role: model.RoleManager},
		{ID: "m2", Name: "Li Wei", Role: model.RoleMember},
	} {
		if err := members.Save(ctx, m); err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
	salt := auth.NewSalt()
	if err := users.Create(ctx, &store.User{
		ID:           "u1",
		Username:     "ana",
		Salt:         salt,
		PasswordHash: auth.HashPassword("secret", salt),
		MemberID:     "m1",
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	authSvc := auth.NewService(users, members, bus, time.Second)
	ctrl := controller.New(controller.Config{
		Tasks:          tasks,
		Members:        members,
		TaskNotifier:   notify.NewTaskNotifier(bus, tasks, 10*time.Millisecond, nil),
		MemberNotifier: notify.NewMemberNotifier(bus, members, 10*time.Millisecond, nil),
	})
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start controller: %v", err)
	}
	t.Cleanup(ctrl.Stop)

	return NewServer(bus, authSvc, ctrl, "localhost", 0)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func login(t *testing.T, srv *Server) {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/api/login", map[string]string{
		"username": "ana", "password": "secret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d: %s", w.Code, w.Body.String())
	}
}

func validTaskBody(id string) *model.Task {
	task := model.NewTask(model.DefaultTemplate(), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	task.ID = id
	task.ProjectNumber = "RS-1042"
	task.BatchInfo = "Batch 7"
	return task
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	defer srv.hub.Close()

	w := doJSON(t, srv, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status %q, got %v", "ok", body["status"])
	}
}

func TestRequiresSession(t *testing.T) {
	srv := newTestServer(t)
	defer srv.hub.Close()

	w := doJSON(t, srv, http.MethodGet, "/api/tasks", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before login, got %d", w.Code)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := newTestServer(t)
	defer srv.hub.Close()

	w := doJSON(t, srv, http.MethodPost, "/api/login", map[string]string{
		"username": "ana", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	defer srv.hub.Close()
	login(t, srv)

	task := validTaskBody("t1")
	task.AssigneeID = "m2"

	w := doJSON(t, srv, http.MethodPut, "/api/tasks/t1", task)
	if w.Code != http.StatusOK {
		t.Fatalf("save: status %d: %s", w.Code, w.Body.String())
	}
	var saved model.Task
	if err := json.NewDecoder(w.Body).Decode(&saved); err != nil {
		t.Fatalf("decode saved: %v", err)
	}
	if saved.Status != model.StatusAssigned {
		t.Errorf("derived status: got %s, want ASSIGNED", saved.Status)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/tasks", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d", w.Code)
	}
	var list []model.Task
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "t1" {
		t.Fatalf("list: %+v", list)
	}

	w = doJSON(t, srv, http.MethodDelete, "/api/tasks/t1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodDelete, "/api/tasks/t1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete missing: expected 404, got %d", w.Code)
	}
}

func TestSaveTaskValidationMaps422(t *testing.T) {
	srv := newTestServer(t)
	defer srv.hub.Close()
	login(t, srv)

	task := validTaskBody("t1")
	task.ProjectNumber = ""

	w := doJSON(t, srv, http.MethodPut, "/api/tasks/t1", task)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "project_number") {
		t.Errorf("body should name the missing field: %s", w.Body.String())
	}
}

func TestSaveTaskIDMismatch(t *testing.T) {
	srv := newTestServer(t)
	defer srv.hub.Close()
	login(t, srv)

	w := doJSON(t, srv, http.MethodPut, "/api/tasks/t1", validTaskBody("t2"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListMembers(t *testing.T) {
	srv := newTestServer(t)
	defer srv.hub.Close()
	login(t, srv)

	w := doJSON(t, srv, http.MethodGet, "/api/members", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var members []model.TeamMember
	if err := json.NewDecoder(w.Body).Decode(&members); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members: %+v", members)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	defer srv.hub.Close()
	login(t, srv)

	w := doJSON(t, srv, http.MethodPut, "/api/tasks/t1", validTaskBody("t1"))
	if w.Code != http.StatusOK {
		t.Fatalf("save: %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var stats controller.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Pending != 1 {
		t.Errorf("pending: %d", stats.Pending)
	}
}

func TestBriefingWithoutModel(t *testing.T) {
	srv := newTestServer(t)
	defer srv.hub.Close()
	login(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/api/briefing", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a configured model, got %d", w.Code)
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t)
	defer srv.hub.Close()
	login(t, srv)

	w := doJSON(t, srv, http.MethodPut, "/api/tasks/t1", validTaskBody("t1"))
	if w.Code != http.StatusOK {
		t.Fatalf("save: %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/export.csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type: %q", ct)
	}
	if !strings.Contains(w.Body.String(), "RS-1042") {
		t.Error("export missing task row")
	}
}
