package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"vowshot-server/modules/common/config"
	"vowshot-server/modules/common/redact"
	"vowshot-server/modules/common/utils"
)

const (
	maxImageInputs = 3

	// source 파라미터의 예약값 - 명시적으로 Gemini 네이티브 포맷 강제
	sourceGemini = "gemini"
	// base URL에 이 조각이 있으면 Gemini 네이티브로 판단
	geminiHostFragment = "generativelanguage"
)

type providerKind int

const (
	providerChatCompatible providerKind = iota
	providerNative
)

// resolvedConfig - 요청 1건에 대해 확정된 provider 설정
type resolvedConfig struct {
	Kind    providerKind
	BaseURL string
	APIKey  string
	Model   string
}

// ErrNoAPIKey - 업스트림 API 키 미설정 (서버 설정 오류 → 500)
var ErrNoAPIKey = fmt.Errorf("image generation API key is not configured")

// upstreamError - provider의 non-2xx 응답
// Detail은 이미 redact 처리된 본문
type upstreamError struct {
	Status int
	Detail string
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("upstream provider error (status %d): %s", e.Status, e.Detail)
}

// ResolveConfig - model_configs 테이블 → env fallback 순으로 provider 설정 확정
func (s *Service) ResolveConfig(reqModel, source string) (*resolvedConfig, error) {
	cfg := config.GetConfig()

	rc := &resolvedConfig{}

	mc, err := s.db.GetActiveModelConfig(source)
	if err != nil {
		log.Printf("⚠️  [Generate] model_configs lookup failed, falling back to env: %v", err)
	}

	if mc != nil {
		rc.BaseURL = mc.APIBaseURL
		rc.APIKey = mc.APIKey
		rc.Model = mc.ModelName
	} else {
		rc.BaseURL = cfg.AIBaseURL
		rc.APIKey = cfg.AIAPIKey
		rc.Model = cfg.AIModel
		if rc.APIKey == "" && len(cfg.GeminiAPIKeys) > 0 {
			rc.APIKey = cfg.GeminiAPIKeys[0]
		}
	}

	if reqModel != "" {
		rc.Model = reqModel
	}
	if rc.BaseURL == "" {
		rc.BaseURL = cfg.AIBaseURL
	}

	// provider 판별: 예약 source 값 또는 base URL의 vendor hostname 조각
	if source == sourceGemini || strings.Contains(rc.BaseURL, geminiHostFragment) {
		rc.Kind = providerNative
	} else {
		rc.Kind = providerChatCompatible
	}

	if rc.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	return rc, nil
}

// Dispatch - provider 호출 후 SSE로 스트리밍
// 업스트림 non-2xx는 *upstreamError로 반환 (SSE 헤더를 쓰기 전에)
func (s *Service) Dispatch(ctx context.Context, w http.ResponseWriter, rc *resolvedConfig, prompt string, imageDataURLs []string, req *GenerateRequest) error {
	switch rc.Kind {
	case providerNative:
		return s.dispatchNative(ctx, w, rc, prompt, imageDataURLs, req)
	default:
		return s.dispatchChatCompatible(ctx, w, rc, prompt, imageDataURLs, req)
	}
}

// dispatchNative - Gemini 네이티브 포맷 (non-streaming 호출 → SSE 합성)
func (s *Service) dispatchNative(ctx context.Context, w http.ResponseWriter, rc *resolvedConfig, prompt string, imageDataURLs []string, req *GenerateRequest) error {
	parts := []geminiPart{{Text: prompt}}

	for _, dataURL := range imageDataURLs {
		mimeType, b64, err := utils.ParseDataURL(dataURL)
		if err != nil {
			log.Printf("⚠️  [Generate] Skipping malformed data URL: %v", err)
			continue
		}
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{MimeType: mimeType, Data: b64},
		})
	}

	body := geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
	}
	if req.Temperature != nil || req.TopP != nil {
		body.GenerationConfig = &geminiGenerationConfig{
			Temperature: req.Temperature,
			TopP:        req.TopP,
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal native request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(rc.BaseURL, "/"), rc.Model)

	log.Printf("🎨 [Generate] Native dispatch: model=%s, images=%d", rc.Model, len(parts)-1)
	log.Printf("   📦 Request: %s", redact.JSON(jsonBody))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to build native request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", rc.APIKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("native provider call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read native response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("❌ [Generate] Native provider error: status=%d, body=%s",
			resp.StatusCode, redact.JSON(respBody))
		return &upstreamError{Status: resp.StatusCode, Detail: redact.JSON(respBody)}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("failed to parse native response: %w", err)
	}

	// non-streaming 응답을 SSE delta 스트림으로 합성
	// 파트가 응답에 나타난 순서 그대로 이벤트 1개씩
	flusher := beginSSE(w)

	emitted := 0
	for _, candidate := range parsed.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			switch {
			case part.Text != "":
				writeDelta(w, flusher, part.Text)
				emitted++
			case part.FileData != nil && part.FileData.FileURI != "":
				writeDelta(w, flusher, fmt.Sprintf("![image](%s)", part.FileData.FileURI))
				emitted++
			case part.InlineData != nil && part.InlineData.Data != "":
				dataURL := "data:" + part.InlineData.MimeType + ";base64," + part.InlineData.Data
				writeDelta(w, flusher, fmt.Sprintf("![image](%s)", dataURL))
				emitted++
			}
		}
	}

	writeDone(w, flusher)
	log.Printf("✅ [Generate] Native stream complete: %d delta frames", emitted)
	return nil
}

// dispatchChatCompatible - OpenAI 호환 포맷 (stream:true, 업스트림 바이트 패스스루)
func (s *Service) dispatchChatCompatible(ctx context.Context, w http.ResponseWriter, rc *resolvedConfig, prompt string, imageDataURLs []string, req *GenerateRequest) error {
	content := []chatContentPart{{Type: "text", Text: prompt}}
	for _, dataURL := range imageDataURLs {
		content = append(content, chatContentPart{
			Type:     "image_url",
			ImageURL: &chatImageURL{URL: dataURL},
		})
	}

	body := chatRequest{
		Model:       rc.Model,
		Messages:    []chatMessage{{Role: "user", Content: content}},
		Stream:      true,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := strings.TrimRight(rc.BaseURL, "/") + "/v1/chat/completions"

	log.Printf("🎨 [Generate] Chat-compatible dispatch: model=%s, images=%d", rc.Model, len(imageDataURLs))
	log.Printf("   📦 Request: %s", redact.JSON(jsonBody))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+rc.APIKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("chat provider call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		log.Printf("❌ [Generate] Chat provider error: status=%d, body=%s",
			resp.StatusCode, redact.JSON(respBody))
		return &upstreamError{Status: resp.StatusCode, Detail: redact.JSON(respBody)}
	}

	// 업스트림이 이미 기대하는 SSE 형태로 내보내므로 리프레이밍 없이 전달
	flusher := beginSSE(w)

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				log.Printf("⚠️  [Generate] Client disconnected mid-stream: %v", writeErr)
				return nil
			}
			flusher.Flush()
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			log.Printf("⚠️  [Generate] Upstream stream ended with error: %v", readErr)
			break
		}
	}

	log.Printf("✅ [Generate] Chat-compatible stream complete")
	return nil
}

// --- SSE helpers ---

type noopFlusher struct{}

func (noopFlusher) Flush() {}

func beginSSE(w http.ResponseWriter) http.Flusher {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if flusher, ok := w.(http.Flusher); ok {
		return flusher
	}
	return noopFlusher{}
}

func writeDelta(w http.ResponseWriter, flusher http.Flusher, content string) {
	frame := sseFrame{Choices: []sseChoice{{Delta: sseDelta{Content: content}}}}
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("⚠️  [Generate] Failed to marshal SSE frame: %v", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

func writeDone(w http.ResponseWriter, flusher http.Flusher) {
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
