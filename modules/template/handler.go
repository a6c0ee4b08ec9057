package template

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"vowshot-server/modules/common/auth"
	"vowshot-server/modules/common/database"
	"vowshot-server/modules/common/model"
)

// 에디터가 저장할 수 있는 프롬프트 최대 길이
const maxPromptLength = 2000

// Handler - 스타일 템플릿 공개 조회 + 관리자 편집
type Handler struct {
	db *database.Client
}

// NewHandler - Template 핸들러 생성
func NewHandler() *Handler {
	return &Handler{db: database.NewClient()}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/templates", h.handleListPublic).Methods("GET", "OPTIONS")

	r.HandleFunc("/api/admin/templates", h.adminOnly(h.handleListAll)).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/admin/templates", h.adminOnly(h.handleCreate)).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/admin/templates/{id}", h.adminOnly(h.handleUpdate)).Methods("PUT", "OPTIONS")
	r.HandleFunc("/api/admin/templates/{id}", h.adminOnly(h.handleDelete)).Methods("DELETE", "OPTIONS")

	log.Println("✅ Template routes registered: /api/templates, /api/admin/templates")
}

// adminOnly - X-Admin-Key 검증 래퍼
func (h *Handler) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if !auth.IsAdmin(r) {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	}
}

// handleListPublic - GET /api/templates (active만, sort_order 오름차순)
func (h *Handler) handleListPublic(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	templates, err := h.db.ListTemplates(true)
	if err != nil {
		log.Printf("❌ [Template] Failed to list templates: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load templates")
		return
	}

	writeJSON(w, http.StatusOK, TemplateListResponse{Templates: templates, Count: len(templates)})
}

// handleListAll - GET /api/admin/templates (draft 포함 전체)
func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	templates, err := h.db.ListTemplates(false)
	if err != nil {
		log.Printf("❌ [Template] Failed to list templates: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load templates")
		return
	}

	writeJSON(w, http.StatusOK, TemplateListResponse{Templates: templates, Count: len(templates)})
}

// handleCreate - POST /api/admin/templates
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg := validateTemplate(&req, true); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	status := req.Status
	if status == "" {
		status = model.TemplateStatusDraft
	}

	tpl := &model.StyleTemplate{
		Slug:        strings.TrimSpace(req.Slug),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Prompt:      req.Prompt,
		PreviewURL:  req.PreviewURL,
		Status:      status,
	}
	if req.SortOrder != nil {
		tpl.SortOrder = *req.SortOrder
	}

	created, err := h.db.InsertTemplate(tpl)
	if err != nil {
		log.Printf("❌ [Template] Failed to create template: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create template")
		return
	}

	log.Printf("✅ [Template] Created: %s (%s)", created.Slug, created.ID)
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdate - PUT /api/admin/templates/{id}
// 보낸 필드만 부분 업데이트
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	templateID := mux.Vars(r)["id"]

	if _, err := h.db.GetTemplate(templateID); err != nil {
		log.Printf("⚠️  [Template] Lookup failed for %s: %v", templateID, err)
		writeError(w, http.StatusNotFound, "template not found")
		return
	}

	var req TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg := validateTemplate(&req, false); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	fields := map[string]interface{}{}
	if req.Slug != "" {
		fields["slug"] = strings.TrimSpace(req.Slug)
	}
	if req.Title != "" {
		fields["title"] = strings.TrimSpace(req.Title)
	}
	if req.Description != "" {
		fields["description"] = req.Description
	}
	if req.Prompt != "" {
		fields["prompt"] = req.Prompt
	}
	if req.PreviewURL != "" {
		fields["preview_url"] = req.PreviewURL
	}
	if req.Status != "" {
		fields["status"] = req.Status
	}
	if req.SortOrder != nil {
		fields["sort_order"] = *req.SortOrder
	}

	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	if err := h.db.UpdateTemplate(templateID, fields); err != nil {
		log.Printf("❌ [Template] Failed to update %s: %v", templateID, err)
		writeError(w, http.StatusInternalServerError, "failed to update template")
		return
	}

	updated, err := h.db.GetTemplate(templateID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload template")
		return
	}

	log.Printf("✅ [Template] Updated: %s", templateID)
	writeJSON(w, http.StatusOK, updated)
}

// handleDelete - DELETE /api/admin/templates/{id}
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	templateID := mux.Vars(r)["id"]

	if err := h.db.DeleteTemplate(templateID); err != nil {
		log.Printf("❌ [Template] Failed to delete %s: %v", templateID, err)
		writeError(w, http.StatusInternalServerError, "failed to delete template")
		return
	}

	log.Printf("🗑️  [Template] Deleted: %s", templateID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": templateID})
}

// validateTemplate - 생성/수정 공통 검증 (requireAll이면 필수 필드 체크)
func validateTemplate(req *TemplateRequest, requireAll bool) string {
	if requireAll {
		if strings.TrimSpace(req.Slug) == "" {
			return "slug is required"
		}
		if strings.TrimSpace(req.Title) == "" {
			return "title is required"
		}
		if strings.TrimSpace(req.Prompt) == "" {
			return "prompt is required"
		}
	}
	if len(req.Prompt) > maxPromptLength {
		return "prompt exceeds maximum length"
	}
	if req.Status != "" && req.Status != model.TemplateStatusActive && req.Status != model.TemplateStatusDraft {
		return "status must be active or draft"
	}
	return ""
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
