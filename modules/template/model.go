package template

// TemplateRequest - 관리자 템플릿 생성/수정 요청 바디
type TemplateRequest struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Prompt      string `json:"prompt"`
	PreviewURL  string `json:"preview_url,omitempty"`
	Status      string `json:"status,omitempty"` // "active" | "draft"
	SortOrder   *int   `json:"sort_order,omitempty"`
}

// TemplateListResponse - 템플릿 목록 응답
type TemplateListResponse struct {
	Templates interface{} `json:"templates"`
	Count     int         `json:"count"`
}
