package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"vowshot-server/modules/common/config"
)

const testUserID = "4f1c7e58-9a2b-4c3d-8e5f-6a7b8c9d0e1f"

// fakeBackend - GoTrue + projects/project_photos 테이블 흉내
type fakeBackend struct {
	mu           sync.Mutex
	lastInsert   map[string]interface{}
	projectsJSON string
}

func (f *fakeBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/auth/v1/user"):
			fmt.Fprintf(w, `{"id":"%s","aud":"authenticated"}`, testUserID)
		case strings.Contains(r.URL.Path, "/projects") && r.Method == http.MethodPost:
			json.NewDecoder(r.Body).Decode(&f.lastInsert)
			fmt.Fprintf(w, `[{"id":"p1","user_id":"%s","title":"%v","status":"active"}]`,
				testUserID, f.lastInsert["title"])
		case strings.Contains(r.URL.Path, "/projects") && r.Method == http.MethodGet:
			fmt.Fprint(w, f.projectsJSON)
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestRouter(t *testing.T, backend *fakeBackend) *mux.Router {
	t.Helper()

	ts := httptest.NewServer(backend.handler())
	t.Cleanup(ts.Close)

	t.Setenv("SUPABASE_URL", ts.URL)
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")
	// S3 미설정 → 업로드 경로만 비활성
	t.Setenv("S3_ACCESS_KEY", "")
	if _, err := config.LoadConfig(); err != nil {
		t.Fatalf("load config: %v", err)
	}

	h := NewHandler()
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func authedRequest(method, path string, body *strings.Reader) *http.Request {
	if body == nil {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer session-token")
	return req
}

func TestCreateProjectRequiresAuth(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{})

	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"title":"Our Wedding"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestCreateProjectInsertsOwnerRow(t *testing.T) {
	backend := &fakeBackend{}
	router := newTestRouter(t, backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/projects",
		strings.NewReader(`{"title":"Our Wedding"}`)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if backend.lastInsert["user_id"] != testUserID {
		t.Fatalf("insert must carry authenticated user id, got %v", backend.lastInsert["user_id"])
	}
	if backend.lastInsert["title"] != "Our Wedding" {
		t.Fatalf("unexpected title in insert: %v", backend.lastInsert["title"])
	}
}

func TestCreateProjectRejectsEmptyTitle(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/projects",
		strings.NewReader(`{"title":"   "}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank title, got %d", rec.Code)
	}
}

func TestListProjectsReturnsUserRows(t *testing.T) {
	backend := &fakeBackend{projectsJSON: fmt.Sprintf(
		`[{"id":"p1","user_id":"%s","title":"A","status":"active"},
		  {"id":"p2","user_id":"%s","title":"B","status":"active"}]`, testUserID, testUserID)}
	router := newTestRouter(t, backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/projects", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp ProjectListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 projects, got %d", resp.Count)
	}
}

func TestGetUnknownProjectReturns404(t *testing.T) {
	backend := &fakeBackend{projectsJSON: `[]`}
	router := newTestRouter(t, backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/projects/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUploadWithoutStorageReturns503(t *testing.T) {
	backend := &fakeBackend{projectsJSON: fmt.Sprintf(
		`[{"id":"p1","user_id":"%s","title":"A","status":"active"}]`, testUserID)}
	router := newTestRouter(t, backend)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "photo.jpg")
	fw.Write([]byte("jpegdata"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/projects/p1/photos", &buf)
	req.Header.Set("Authorization", "Bearer session-token")
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when storage is not configured, got %d", rec.Code)
	}
}
