package model

// Profile - profiles 테이블 (크레딧 잔액)
type Profile struct {
	ID      string `json:"id"`
	Email   string `json:"email,omitempty"`
	Credits int    `json:"credits"`
}

// ModelConfig - model_configs 테이블 (생성 API 설정)
type ModelConfig struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	APIBaseURL string `json:"api_base_url"`
	APIKey     string `json:"api_key"`
	ModelName  string `json:"model_name"`
}

// Project - projects 테이블 (웨딩 프로젝트)
type Project struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	Title      string  `json:"title"`
	TemplateID *string `json:"template_id,omitempty"`
	Status     string  `json:"status"`
	CoverURL   *string `json:"cover_url,omitempty"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

// ProjectPhoto - project_photos 테이블 (원본/생성 이미지)
type ProjectPhoto struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	Kind      string `json:"kind"` // "original" | "generated"
	ObjectKey string `json:"object_key"`
	PublicURL string `json:"public_url"`
	FileSize  int64  `json:"file_size"`
	MimeType  string `json:"mime_type"`
	CreatedAt string `json:"created_at,omitempty"`
}

// StyleTemplate - style_templates 테이블 (관리자 템플릿)
type StyleTemplate struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Prompt      string `json:"prompt"`
	PreviewURL  string `json:"preview_url,omitempty"`
	Status      string `json:"status"` // "active" | "draft"
	SortOrder   int    `json:"sort_order"`
}

// GenerationJob - generation_jobs 테이블 (배치 생성 작업)
type GenerationJob struct {
	JobID           string   `json:"job_id"`
	UserID          string   `json:"user_id"`
	ProjectID       string   `json:"project_id"`
	TemplateID      *string  `json:"template_id,omitempty"`
	Prompt          string   `json:"prompt"`
	SourcePhotoIDs  []string `json:"source_photo_ids"`
	TotalImages     int      `json:"total_images"`
	CompletedImages int      `json:"completed_images"`
	JobStatus       string   `json:"job_status"`
	ErrorMessage    *string  `json:"error_message,omitempty"`
}

// Photo kinds
const (
	PhotoKindOriginal  = "original"
	PhotoKindGenerated = "generated"
)

// Job statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Template statuses
const (
	TemplateStatusActive = "active"
	TemplateStatusDraft  = "draft"
)
