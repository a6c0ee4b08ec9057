package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"vowshot-server/modules/common/config"
	"vowshot-server/modules/common/model"
)

type Client struct {
	supabase *supabase.Client
}

// NewClient - Database 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{
		supabase: supabaseClient,
	}
}

// GetActiveModelConfig - model_configs에서 active 설정 조회
// source가 비어있지 않으면 source까지 매칭. row가 없으면 (nil, nil) - 호출부에서 env fallback
func (c *Client) GetActiveModelConfig(source string) (*model.ModelConfig, error) {
	query := c.supabase.From("model_configs").
		Select("*", "", false).
		Eq("type", "generate-image").
		Eq("status", "active")

	if source != "" {
		query = query.Eq("source", source)
	}

	data, _, err := query.Limit(1, "").Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query model_configs: %w", err)
	}

	var configs []model.ModelConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("failed to parse model_configs: %w", err)
	}

	if len(configs) == 0 {
		return nil, nil
	}

	return &configs[0], nil
}

// --- Projects ---

// CreateProject - projects 레코드 생성
func (c *Client) CreateProject(ctx context.Context, userID, title string, templateID *string) (*model.Project, error) {
	insertData := map[string]interface{}{
		"user_id": userID,
		"title":   title,
		"status":  "active",
	}
	if templateID != nil && *templateID != "" {
		insertData["template_id"] = *templateID
	}

	data, _, err := c.supabase.From("projects").
		Insert(insertData, false, "", "", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}

	var projects []model.Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("failed to parse project response: %w", err)
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("no project record returned")
	}

	log.Printf("✅ Project created: %s (%s)", projects[0].ID, title)
	return &projects[0], nil
}

// ListProjects - 사용자 프로젝트 목록 (최신순)
func (c *Client) ListProjects(userID string) ([]model.Project, error) {
	data, _, err := c.supabase.From("projects").
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	var projects []model.Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("failed to parse projects: %w", err)
	}
	return projects, nil
}

// GetProject - 프로젝트 조회 (소유자 필터 포함)
func (c *Client) GetProject(projectID, userID string) (*model.Project, error) {
	data, _, err := c.supabase.From("projects").
		Select("*", "", false).
		Eq("id", projectID).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}

	var projects []model.Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("project not found: %s", projectID)
	}
	return &projects[0], nil
}

// DeleteProject - 프로젝트 삭제 (소유자만)
func (c *Client) DeleteProject(projectID, userID string) error {
	_, _, err := c.supabase.From("projects").
		Delete("", "").
		Eq("id", projectID).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// UpdateProjectCover - 커버 이미지 갱신
func (c *Client) UpdateProjectCover(projectID, coverURL string) error {
	_, _, err := c.supabase.From("projects").
		Update(map[string]interface{}{"cover_url": coverURL}, "", "").
		Eq("id", projectID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update project cover: %w", err)
	}
	return nil
}

// --- Project photos ---

// InsertProjectPhoto - project_photos 레코드 생성
func (c *Client) InsertProjectPhoto(photo *model.ProjectPhoto) (*model.ProjectPhoto, error) {
	insertData := map[string]interface{}{
		"project_id": photo.ProjectID,
		"user_id":    photo.UserID,
		"kind":       photo.Kind,
		"object_key": photo.ObjectKey,
		"public_url": photo.PublicURL,
		"file_size":  photo.FileSize,
		"mime_type":  photo.MimeType,
	}

	data, _, err := c.supabase.From("project_photos").
		Insert(insertData, false, "", "", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to insert project photo: %w", err)
	}

	var photos []model.ProjectPhoto
	if err := json.Unmarshal(data, &photos); err != nil {
		return nil, fmt.Errorf("failed to parse photo response: %w", err)
	}
	if len(photos) == 0 {
		return nil, fmt.Errorf("no photo record returned")
	}

	log.Printf("✅ Photo record created: %s (%s)", photos[0].ID, photo.Kind)
	return &photos[0], nil
}

// ListProjectPhotos - 프로젝트의 사진 목록 (최신순)
func (c *Client) ListProjectPhotos(projectID, userID string) ([]model.ProjectPhoto, error) {
	data, _, err := c.supabase.From("project_photos").
		Select("*", "", false).
		Eq("project_id", projectID).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	var photos []model.ProjectPhoto
	if err := json.Unmarshal(data, &photos); err != nil {
		return nil, fmt.Errorf("failed to parse photos: %w", err)
	}
	return photos, nil
}

// GetPhoto - 단일 사진 조회 (소유자 필터 포함)
func (c *Client) GetPhoto(photoID, userID string) (*model.ProjectPhoto, error) {
	data, _, err := c.supabase.From("project_photos").
		Select("*", "", false).
		Eq("id", photoID).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query photo: %w", err)
	}

	var photos []model.ProjectPhoto
	if err := json.Unmarshal(data, &photos); err != nil {
		return nil, fmt.Errorf("failed to parse photo: %w", err)
	}
	if len(photos) == 0 {
		return nil, fmt.Errorf("photo not found: %s", photoID)
	}
	return &photos[0], nil
}

// --- Style templates ---

// ListTemplates - 템플릿 목록 (onlyActive면 active만, sort_order 순)
func (c *Client) ListTemplates(onlyActive bool) ([]model.StyleTemplate, error) {
	query := c.supabase.From("style_templates").
		Select("*", "", false)

	if onlyActive {
		query = query.Eq("status", model.TemplateStatusActive)
	}

	data, _, err := query.Order("sort_order", &postgrest.OrderOpts{Ascending: true}).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	var templates []model.StyleTemplate
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return templates, nil
}

// GetTemplate - 단일 템플릿 조회
func (c *Client) GetTemplate(templateID string) (*model.StyleTemplate, error) {
	data, _, err := c.supabase.From("style_templates").
		Select("*", "", false).
		Eq("id", templateID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query template: %w", err)
	}

	var templates []model.StyleTemplate
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("template not found: %s", templateID)
	}
	return &templates[0], nil
}

// InsertTemplate - 템플릿 생성 (관리자)
func (c *Client) InsertTemplate(tpl *model.StyleTemplate) (*model.StyleTemplate, error) {
	insertData := map[string]interface{}{
		"slug":        tpl.Slug,
		"title":       tpl.Title,
		"description": tpl.Description,
		"prompt":      tpl.Prompt,
		"preview_url": tpl.PreviewURL,
		"status":      tpl.Status,
		"sort_order":  tpl.SortOrder,
	}

	data, _, err := c.supabase.From("style_templates").
		Insert(insertData, false, "", "", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to insert template: %w", err)
	}

	var templates []model.StyleTemplate
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse template response: %w", err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("no template record returned")
	}
	return &templates[0], nil
}

// UpdateTemplate - 템플릿 수정 (관리자)
func (c *Client) UpdateTemplate(templateID string, fields map[string]interface{}) error {
	_, _, err := c.supabase.From("style_templates").
		Update(fields, "", "").
		Eq("id", templateID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	return nil
}

// DeleteTemplate - 템플릿 삭제 (관리자)
func (c *Client) DeleteTemplate(templateID string) error {
	_, _, err := c.supabase.From("style_templates").
		Delete("", "").
		Eq("id", templateID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}

// --- Generation jobs ---

// CreateJob - generation_jobs 레코드 생성
func (c *Client) CreateJob(ctx context.Context, job *model.GenerationJob) (*model.GenerationJob, error) {
	insertData := map[string]interface{}{
		"job_id":           job.JobID,
		"user_id":          job.UserID,
		"project_id":       job.ProjectID,
		"prompt":           job.Prompt,
		"source_photo_ids": job.SourcePhotoIDs,
		"total_images":     job.TotalImages,
		"completed_images": 0,
		"job_status":       model.StatusPending,
	}
	if job.TemplateID != nil && *job.TemplateID != "" {
		insertData["template_id"] = *job.TemplateID
	}

	data, _, err := c.supabase.From("generation_jobs").
		Insert(insertData, false, "", "", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	var jobs []model.GenerationJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse job response: %w", err)
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no job record returned")
	}

	log.Printf("✅ Job created: %s (project: %s, images: %d)", jobs[0].JobID, job.ProjectID, job.TotalImages)
	return &jobs[0], nil
}

// FetchJob - Job 데이터 조회
func (c *Client) FetchJob(jobID string) (*model.GenerationJob, error) {
	log.Printf("🔍 Fetching job: %s", jobID)

	var jobs []model.GenerationJob

	data, _, err := c.supabase.From("generation_jobs").
		Select("*", "", false).
		Eq("job_id", jobID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}

	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}

	if len(jobs) == 0 {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	job := &jobs[0]
	log.Printf("✅ Job fetched: %s (status: %s, total_images: %d)", job.JobID, job.JobStatus, job.TotalImages)
	return job, nil
}

// UpdateJobStatus - Job 상태 업데이트
func (c *Client) UpdateJobStatus(ctx context.Context, jobID string, status string, errorMessage *string) error {
	log.Printf("📝 Updating job %s status to: %s", jobID, status)

	updateData := map[string]interface{}{
		"job_status": status,
		"updated_at": "now()",
	}

	if status == model.StatusProcessing {
		updateData["started_at"] = "now()"
	} else if status == model.StatusCompleted || status == model.StatusFailed {
		updateData["completed_at"] = "now()"
	}
	if errorMessage != nil {
		updateData["error_message"] = *errorMessage
	}

	_, _, err := c.supabase.From("generation_jobs").
		Update(updateData, "", "").
		Eq("job_id", jobID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return nil
}

// UpdateJobProgress - Job 진행 상황 업데이트
func (c *Client) UpdateJobProgress(ctx context.Context, jobID string, completedImages int) error {
	updateData := map[string]interface{}{
		"completed_images": completedImages,
		"updated_at":       "now()",
	}

	_, _, err := c.supabase.From("generation_jobs").
		Update(updateData, "", "").
		Eq("job_id", jobID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}

	log.Printf("📊 Job %s progress: %d images completed", jobID, completedImages)
	return nil
}
