package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"tasklane/internal/app/service"
	"tasklane/internal/common"
	"tasklane/internal/common/security"
	"tasklane/internal/domain/model"

	"golang.org/x/crypto/bcrypt"
)

type memUserRepo struct {
	users map[string]*model.User // keyed by username
}

func (r *memUserRepo) Create(_ context.Context, user *model.User) error {
	if _, ok := r.users[user.Username]; ok {
		return common.ErrConflict
	}
	copied := *user
	r.users[user.Username] = &copied
	return nil
}

func (r *memUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	user, ok := r.users[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	for _, user := range r.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

type memTaskRepo struct {
	tasks map[string]*model.Task
	order []string
}

func (r *memTaskRepo) Insert(_ context.Context, _ *sql.Tx, task *model.Task) error {
	copied := *task
	r.tasks[task.ID] = &copied
	r.order = append(r.order, task.ID)
	return nil
}

func (r *memTaskRepo) FindByID(_ context.Context, id string) (*model.Task, error) {
	task, ok := r.tasks[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *task
	return &copied, nil
}

func (r *memTaskRepo) ListByOwner(_ context.Context, ownerID string, completed *bool) ([]model.Task, error) {
	out := []model.Task{}
	for _, id := range r.order {
		t := r.tasks[id]
		if t.OwnerID != ownerID {
			continue
		}
		if completed != nil && t.Completed != *completed {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r *memTaskRepo) Update(_ context.Context, id string, patch model.TaskPatch) (*model.Task, error) {
	task, ok := r.tasks[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.DueDate != nil {
		task.DueDate = *patch.DueDate
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}
	copied := *task
	return &copied, nil
}

func (r *memTaskRepo) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := r.tasks[id]; !ok {
		return false, nil
	}
	delete(r.tasks, id)
	for i, tid := range r.order {
		if tid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func newTestServer() *httptest.Server {
	tokens := security.NewTokenIssuer([]byte("test-secret"), time.Hour)
	userRepo := &memUserRepo{users: map[string]*model.User{}}
	taskRepo := &memTaskRepo{tasks: map[string]*model.Task{}}

	authService := service.NewAuthService(userRepo, tokens, bcrypt.MinCost)
	taskService := service.NewTaskService(taskRepo)
	transferService := service.NewTransferService(nil, taskRepo)

	return httptest.NewServer(NewRouter(tokens, userRepo, authService, taskService, transferService))
}

func doJSON(t *testing.T, method, url, token string, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Read body failed: %v", err)
	}
	return resp, data
}

func TestRegisterLoginTaskLifecycle(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	// Register alice.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/register", "",
		`{"username":"alice","email":"a@x.com","password":"pw"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", resp.StatusCode, body)
	}
	var registered model.User
	if err := json.Unmarshal(body, &registered); err != nil {
		t.Fatalf("register: bad body: %v", err)
	}
	if registered.Username != "alice" || registered.Email != "a@x.com" || registered.ID == "" {
		t.Errorf("register: unexpected response %s", body)
	}

	// Duplicate username is rejected without creating a second row.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/register", "",
		`{"username":"alice","email":"other@x.com","password":"pw2"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("duplicate register: expected 400, got %d", resp.StatusCode)
	}

	// Bad credentials.
	form := url.Values{"username": {"alice"}, "password": {"wrong"}}
	resp, err := http.PostForm(srv.URL+"/api/v1/login", form)
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login: expected 401, got %d", resp.StatusCode)
	}

	// Real login.
	form.Set("password", "pw")
	resp, err = http.PostForm(srv.URL+"/api/v1/login", form)
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	var login service.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("login: bad body: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || login.AccessToken == "" || login.TokenType != "bearer" {
		t.Fatalf("login: expected bearer token, got %d %+v", resp.StatusCode, login)
	}
	token := login.AccessToken

	// Protected routes reject missing tokens.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/tasks", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", resp.StatusCode)
	}

	// Past due date is rejected.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/tasks", token,
		`{"title":"Buy milk","due_date":"2001-01-01T00:00:00Z"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("past due date: expected 422, got %d", resp.StatusCode)
	}

	// Create a valid task.
	due := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/tasks", token,
		`{"title":"Buy milk","due_date":"`+due+`"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", resp.StatusCode, body)
	}
	var created model.Task
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("create: bad body: %v", err)
	}
	if created.Completed {
		t.Error("create: new task must be incomplete")
	}

	// List shows exactly that task.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/tasks", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var listed []model.Task
	if err := json.Unmarshal(body, &listed); err != nil {
		t.Fatalf("list: bad body: %v", err)
	}
	if len(listed) != 1 || listed[0].Title != "Buy milk" || listed[0].Completed {
		t.Fatalf("list: unexpected tasks %s", body)
	}

	// Complete it.
	resp, body = doJSON(t, http.MethodPatch, srv.URL+"/api/v1/tasks/"+created.ID+"/complete", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d (%s)", resp.StatusCode, body)
	}
	var completed model.Task
	if err := json.Unmarshal(body, &completed); err != nil {
		t.Fatalf("complete: bad body: %v", err)
	}
	if !completed.Completed {
		t.Error("complete: expected completed=true")
	}

	// Export now returns a workbook.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/tasks/export", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, service.ExportFilename) {
		t.Errorf("export: unexpected Content-Disposition %q", cd)
	}
	if len(body) == 0 {
		t.Error("export: empty body")
	}

	// Delete and confirm the list is empty again.
	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/tasks/"+created.ID, token, "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Task deleted") {
		t.Fatalf("delete: expected 200 Task deleted, got %d (%s)", resp.StatusCode, body)
	}
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/tasks", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list after delete: expected 200, got %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &listed); err != nil || len(listed) != 0 {
		t.Errorf("list after delete: expected empty sequence, got %s", body)
	}

	// Export with no tasks is a 404.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/tasks/export", token, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("empty export: expected 404, got %d", resp.StatusCode)
	}
}

func TestCrossUserAccessIsNotFound(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	register := func(name string) string {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/register", "",
			`{"username":"`+name+`","email":"`+name+`@x.com","password":"pw"}`)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("register %s: got %d (%s)", name, resp.StatusCode, body)
		}
		form := url.Values{"username": {name}, "password": {"pw"}}
		loginResp, err := http.PostForm(srv.URL+"/api/v1/login", form)
		if err != nil {
			t.Fatalf("login %s failed: %v", name, err)
		}
		defer loginResp.Body.Close()
		var login service.LoginResponse
		if err := json.NewDecoder(loginResp.Body).Decode(&login); err != nil {
			t.Fatalf("login %s: bad body: %v", name, err)
		}
		return login.AccessToken
	}

	aliceToken := register("alice")
	bobToken := register("bob")

	due := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/tasks", aliceToken,
		`{"title":"Secret","due_date":"`+due+`"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: got %d (%s)", resp.StatusCode, body)
	}
	var created model.Task
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("create: bad body: %v", err)
	}

	var listed []model.Task
	_, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/tasks", bobToken, "")
	if err := json.Unmarshal(body, &listed); err != nil || len(listed) != 0 {
		t.Errorf("bob's list should be empty, got %s", body)
	}

	for _, probe := range []struct {
		method, path string
	}{
		{http.MethodPatch, "/api/v1/tasks/" + created.ID + "/complete"},
		{http.MethodDelete, "/api/v1/tasks/" + created.ID},
	} {
		resp, _ = doJSON(t, probe.method, srv.URL+probe.path, bobToken, "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s %s as bob: expected 404, got %d", probe.method, probe.path, resp.StatusCode)
		}
	}
}
