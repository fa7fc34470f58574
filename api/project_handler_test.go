package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rpupo63/portfolio-projects-backend/errs"
	"github.com/rpupo63/portfolio-projects-backend/models"
	"github.com/rpupo63/portfolio-projects-backend/services"
	"github.com/rpupo63/portfolio-projects-backend/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryProjectStore keeps projects in a map and orders FindAll by creation time.
type memoryProjectStore struct {
	mu       sync.Mutex
	projects map[uuid.UUID]models.Project
	failWith error
}

func newMemoryProjectStore() *memoryProjectStore {
	return &memoryProjectStore{projects: map[uuid.UUID]models.Project{}}
}

func (m *memoryProjectStore) FindAll(context.Context) ([]*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]*models.Project, 0, len(m.projects))
	for _, p := range m.projects {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryProjectStore) FindByID(_ context.Context, id uuid.UUID) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	p, ok := m.projects[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}

func (m *memoryProjectStore) Add(_ context.Context, project *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	project.ID = uuid.New()
	m.projects[project.ID] = *project
	return nil
}

func (m *memoryProjectStore) Update(_ context.Context, project *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project.ID] = *project
	return nil
}

func (m *memoryProjectStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	return nil
}

type testServer struct {
	handler    http.Handler
	store      *memoryProjectStore
	uploadRoot string
}

func newTestServer(t *testing.T, cfg map[string]string) testServer {
	t.Helper()
	store := newMemoryProjectStore()
	reclaimer, err := storage.NewReclaimer(filepath.Join(t.TempDir(), "uploads"), zerolog.Nop())
	require.NoError(t, err)
	svc := services.NewProjectService(store, reclaimer, zerolog.Nop())

	router := newRouter(svc,
		withConfig(cfg),
		withStartupTime(time.Now().Add(-time.Minute)),
		withUploadRoot(reclaimer.Root()),
	)
	return testServer{handler: router, store: store, uploadRoot: reclaimer.Root()}
}

func (s testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s testServer) upload(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(s.uploadRoot, name), []byte(name), 0o644))
}

func (s testServer) exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.uploadRoot, name))
	return err == nil
}

const createBody = `{
	"title": "Harbour House",
	"category": "Residential",
	"location": "Lisbon",
	"year": 2023,
	"image": "/uploads/a.png",
	"images": ["/uploads/b.png", "/uploads/c.png"],
	"description": "A renovated warehouse",
	"services": ["design", "build"],
	"highlights": ["river views"],
	"stats": {"area": "420m2"}
}`

const updateBody = `{
	"title": "Harbour House",
	"category": "Residential",
	"location": "Lisbon",
	"year": "2023",
	"image": "/uploads/a2.png",
	"images": ["/uploads/c.png", "/uploads/d.png"],
	"description": "A renovated warehouse",
	"services": ["design", "build"],
	"highlights": ["river views"],
	"stats": {"area": "420m2"}
}`

func decodeResponseProject(t *testing.T, w *httptest.ResponseRecorder) models.Project {
	t.Helper()
	var project models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &project))
	return project
}

func TestProjectRoutes_MediaLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, name := range []string{"a.png", "b.png", "c.png", "a2.png", "d.png"} {
		srv.upload(t, name)
	}

	w := srv.do(t, http.MethodPost, "/projects", createBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	created := decodeResponseProject(t, w)
	assert.Equal(t, models.Year("2023"), created.Year)
	assert.False(t, created.CreatedAt.IsZero())

	w = srv.do(t, http.MethodPut, "/projects/"+created.ID.String(), updateBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeResponseProject(t, w)
	assert.Equal(t, "/uploads/a2.png", updated.Image)
	assert.Equal(t, created.CreatedAt.UTC(), updated.CreatedAt.UTC())

	assert.False(t, srv.exists("a.png"))
	assert.False(t, srv.exists("b.png"))
	assert.True(t, srv.exists("c.png"))
	assert.True(t, srv.exists("a2.png"))
	assert.True(t, srv.exists("d.png"))

	w = srv.do(t, http.MethodDelete, "/projects/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var msg map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, "Project deleted successfully", msg["message"])

	assert.False(t, srv.exists("a2.png"))
	assert.False(t, srv.exists("c.png"))
	assert.False(t, srv.exists("d.png"))

	w = srv.do(t, http.MethodGet, "/projects/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProjectRoutes_ListNewestFirst(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodGet, "/projects", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	first := decodeResponseProject(t, srv.do(t, http.MethodPost, "/projects", createBody))
	time.Sleep(2 * time.Millisecond)
	second := decodeResponseProject(t, srv.do(t, http.MethodPost, "/projects", createBody))

	w = srv.do(t, http.MethodGet, "/projects", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestProjectRoutes_CreateMissingField(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodPost, "/projects", `{"title": "No media"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "category", body["field"])
	assert.Empty(t, srv.store.projects)
}

func TestProjectRoutes_CreateEmptyStructuredField(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name  string
		value string
	}{
		{"empty string", `""`},
		{"false", `false`},
		{"zero", `0`},
		{"null", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.Replace(createBody, `"services": ["design", "build"]`, `"services": `+tt.value, 1)

			w := srv.do(t, http.MethodPost, "/projects", body)

			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "services", resp["field"])
			assert.Empty(t, srv.store.projects)
		})
	}
}

func TestProjectRoutes_MalformedBody(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"title":`},
		{"year is a bool", `{"year": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(t, http.MethodPost, "/projects", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestProjectRoutes_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t, nil)

	body := `{"title":"` + strings.Repeat("x", maxProjectBodyBytes) + `"}`
	w := srv.do(t, http.MethodPost, "/projects", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestProjectRoutes_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	missing := uuid.New().String()

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/projects/" + missing, ""},
		{http.MethodGet, "/projects/not-a-uuid", ""},
		{http.MethodPut, "/projects/" + missing, updateBody},
		{http.MethodDelete, "/projects/" + missing, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := srv.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestProjectRoutes_StoreFailureHidesCause(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.store.failWith = errors.New("dial tcp 10.0.0.5:5432: connection refused")

	w := srv.do(t, http.MethodGet, "/projects", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")

	w = srv.do(t, http.MethodGet, "/projects/"+uuid.New().String(), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestProjectRoutes_BackendPassword(t *testing.T) {
	srv := newTestServer(t, map[string]string{"BACKEND_PASSWORD": "s3cret"})

	w := srv.do(t, http.MethodPost, "/projects", createBody)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodPost, "/projects", createBody, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodPost, "/projects", createBody, "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = srv.do(t, http.MethodGet, "/projects", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProjectRoutes_CORS(t *testing.T) {
	srv := newTestServer(t, map[string]string{"ACCEPTED_ORIGINS": "https://portfolio.example"})

	w := srv.do(t, http.MethodOptions, "/projects", "",
		"Origin", "https://evil.example",
		"Access-Control-Request-Method", "POST")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = srv.do(t, http.MethodGet, "/projects", "", "Origin", "https://portfolio.example")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://portfolio.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUploadsAreServed(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.upload(t, "a.png")

	w := srv.do(t, http.MethodGet, "/uploads/a.png", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a.png", w.Body.String())

	w = srv.do(t, http.MethodGet, "/uploads/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodGet, "/uploads/missing.png", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["uptime"])
	assert.NotEmpty(t, body["startedAt"])
}
