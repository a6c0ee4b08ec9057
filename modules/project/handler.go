package project

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"vowshot-server/modules/common/auth"
	"vowshot-server/modules/common/database"
	"vowshot-server/modules/common/model"
	"vowshot-server/modules/common/storage"
)

// 업로드 원본 최대 크기 (15MB)
const maxUploadBytes = 15 << 20

// Handler - 프로젝트/갤러리 CRUD + 원본 사진 업로드
type Handler struct {
	db      *database.Client
	auth    *auth.Client
	storage *storage.Client
}

// NewHandler - Project 핸들러 생성
// S3 설정이 없으면 업로드만 비활성, 나머지 CRUD는 동작
func NewHandler() *Handler {
	store, err := storage.NewClient()
	if err != nil {
		log.Printf("⚠️  [Project] Storage disabled: %v", err)
	}

	return &Handler{
		db:      database.NewClient(),
		auth:    auth.NewClient(),
		storage: store,
	}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/projects", h.withUser(h.handleCreate)).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/projects", h.withUser(h.handleList)).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/projects/{id}", h.withUser(h.handleGet)).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/projects/{id}", h.withUser(h.handleDelete)).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/api/projects/{id}/photos", h.withUser(h.handleListPhotos)).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/projects/{id}/photos", h.withUser(h.handleUploadPhoto)).Methods("POST", "OPTIONS")

	log.Println("✅ Project routes registered: /api/projects")
}

// withUser - 인증 래퍼, 유저 ID를 핸들러로 전달
func (h *Handler) withUser(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		userID, err := h.auth.UserFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r, userID)
	}
}

// handleCreate - POST /api/projects
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request, userID string) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	created, err := h.db.CreateProject(r.Context(), userID, title, req.TemplateID)
	if err != nil {
		log.Printf("❌ [Project] Failed to create project: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// handleList - GET /api/projects
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, userID string) {
	projects, err := h.db.ListProjects(userID)
	if err != nil {
		log.Printf("❌ [Project] Failed to list projects: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load projects")
		return
	}

	writeJSON(w, http.StatusOK, ProjectListResponse{Projects: projects, Count: len(projects)})
}

// handleGet - GET /api/projects/{id}
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, userID string) {
	projectID := mux.Vars(r)["id"]

	proj, err := h.db.GetProject(projectID, userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	writeJSON(w, http.StatusOK, proj)
}

// handleDelete - DELETE /api/projects/{id}
// 소유자 필터가 걸려 있어 남의 프로젝트는 지워지지 않는다
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, userID string) {
	projectID := mux.Vars(r)["id"]

	if err := h.db.DeleteProject(projectID, userID); err != nil {
		log.Printf("❌ [Project] Failed to delete %s: %v", projectID, err)
		writeError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}

	log.Printf("🗑️  [Project] Deleted: %s (user: %s)", projectID, userID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": projectID})
}

// handleListPhotos - GET /api/projects/{id}/photos
func (h *Handler) handleListPhotos(w http.ResponseWriter, r *http.Request, userID string) {
	projectID := mux.Vars(r)["id"]

	photos, err := h.db.ListProjectPhotos(projectID, userID)
	if err != nil {
		log.Printf("❌ [Project] Failed to list photos: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load photos")
		return
	}

	writeJSON(w, http.StatusOK, PhotoListResponse{Photos: photos, Count: len(photos)})
}

// handleUploadPhoto - POST /api/projects/{id}/photos (multipart, 필드명 "file")
// 원본을 S3 호환 스토리지에 올리고 project_photos 레코드를 만든다
func (h *Handler) handleUploadPhoto(w http.ResponseWriter, r *http.Request, userID string) {
	projectID := mux.Vars(r)["id"]

	if h.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "photo storage is not configured")
		return
	}

	// 소유권 확인 먼저
	if _, err := h.db.GetProject(projectID, userID); err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "only image uploads are allowed")
		return
	}

	ext := strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	if ext == "" {
		ext = "jpg"
	}

	key, publicURL, err := h.storage.UploadOriginal(r.Context(), userID, projectID, data, contentType, ext)
	if err != nil {
		log.Printf("❌ [Project] Upload failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store photo")
		return
	}

	photo, err := h.db.InsertProjectPhoto(&model.ProjectPhoto{
		ProjectID: projectID,
		UserID:    userID,
		Kind:      model.PhotoKindOriginal,
		ObjectKey: key,
		PublicURL: publicURL,
		FileSize:  int64(len(data)),
		MimeType:  contentType,
	})
	if err != nil {
		log.Printf("❌ [Project] Photo record failed, removing object %s: %v", key, err)
		// 레코드 없이 남은 객체는 정리
		if delErr := h.storage.Delete(r.Context(), key); delErr != nil {
			log.Printf("⚠️  [Project] Orphan cleanup failed: %v", delErr)
		}
		writeError(w, http.StatusInternalServerError, "failed to record photo")
		return
	}

	log.Printf("📸 [Project] Photo uploaded: %s → %s (%d bytes)", header.Filename, key, len(data))
	writeJSON(w, http.StatusCreated, photo)
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
