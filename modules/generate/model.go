package generate

// GenerateRequest - POST /api/generate 요청 바디
type GenerateRequest struct {
	Prompt      string   `json:"prompt"`
	ImageInputs []string `json:"image_inputs,omitempty"` // data: 또는 http(s):// URL, 최대 3개 사용
	Model       string   `json:"model,omitempty"`
	Source      string   `json:"source,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// ErrorResponse - 에러 응답 공통 형태
type ErrorResponse struct {
	Error          string `json:"error"`
	CurrentCredits *int   `json:"current_credits,omitempty"`
	RequiredCredits *int  `json:"required_credits,omitempty"`
	RetryAfter     *int   `json:"retry_after,omitempty"`
}

// --- SSE frames (OpenAI delta shape) ---

type sseDelta struct {
	Content string `json:"content"`
}

type sseChoice struct {
	Delta sseDelta `json:"delta"`
}

type sseFrame struct {
	Choices []sseChoice `json:"choices"`
}

// --- Gemini-native wire types ---

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"topP,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content *geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

// --- OpenAI-chat-compatible wire types ---

type chatImageURL struct {
	URL string `json:"url"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatContentPart `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
}
