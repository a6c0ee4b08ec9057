package nanobanana

// InputImage - 생성 입력 이미지 (base64 + mime)
type InputImage struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// GenerateRequest - 웨딩 사진 생성 요청
type GenerateRequest struct {
	Prompt string       `json:"prompt"`
	Images []InputImage `json:"images,omitempty"`
	Model  string       `json:"model,omitempty"`
}

// GenerateResponse - 생성 결과 (성공 시 PNG/JPEG 바이트)
type GenerateResponse struct {
	Success      bool   `json:"success"`
	ImageBytes   []byte `json:"-"`
	MimeType     string `json:"mimeType,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}
