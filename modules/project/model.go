package project

// CreateProjectRequest - POST /api/projects 요청 바디
type CreateProjectRequest struct {
	Title      string  `json:"title"`
	TemplateID *string `json:"template_id,omitempty"`
}

// ProjectListResponse - 프로젝트 목록 응답
type ProjectListResponse struct {
	Projects interface{} `json:"projects"`
	Count    int         `json:"count"`
}

// PhotoListResponse - 사진 목록 응답
type PhotoListResponse struct {
	Photos interface{} `json:"photos"`
	Count  int         `json:"count"`
}
