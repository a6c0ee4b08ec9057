package nanobanana

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	"google.golang.org/genai"

	"vowshot-server/modules/common/config"
	"vowshot-server/modules/common/gemini"
)

// Service - Gemini 직접 호출 생성 서비스 (워커 전용 경로)
type Service struct{}

// NewService - Nanobanana 서비스 생성
func NewService() *Service {
	cfg := config.GetConfig()
	if len(cfg.GeminiAPIKeys) == 0 {
		log.Println("⚠️  [Nanobanana] No Gemini API keys configured")
		return nil
	}

	log.Println("✅ [Nanobanana] Service initialized")
	return &Service{}
}

// Generate - 프롬프트 + 원본 사진으로 웨딩 이미지 1장 생성
// 429는 키 로테이션으로 재시도, 그 외 에러는 즉시 실패
func (s *Service) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	cfg := config.GetConfig()

	model := req.Model
	if model == "" {
		model = cfg.GeminiModel
	}

	log.Printf("🎨 [Nanobanana] Generating - model: %s, images: %d, prompt: %s",
		model, len(req.Images), truncateString(req.Prompt, 50))

	parts := []*genai.Part{
		genai.NewPartFromText(req.Prompt),
	}

	for i, img := range req.Images {
		if img.Data == "" || img.MimeType == "" {
			continue
		}

		imageData, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			log.Printf("⚠️  [Nanobanana] Failed to decode image %d: %v", i+1, err)
			continue
		}

		log.Printf("📷 [Nanobanana] Adding input image %d: %s, %d bytes", i+1, img.MimeType, len(imageData))
		parts = append(parts, genai.NewPartFromBytes(imageData, img.MimeType))
	}

	content := &genai.Content{Parts: parts}

	result, err := gemini.GenerateContentWithRetry(
		ctx,
		cfg.GeminiAPIKeys,
		model,
		[]*genai.Content{content},
		&genai.GenerateContentConfig{
			Temperature: floatPtr(0.7),
		},
	)
	if err != nil {
		log.Printf("❌ [Nanobanana] Gemini API error: %v", err)
		return &GenerateResponse{
			Success:      false,
			ErrorMessage: fmt.Sprintf("Gemini API error: %v", err),
		}, nil
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}

		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				log.Printf("✅ [Nanobanana] Image generated: %d bytes", len(part.InlineData.Data))

				mimeType := part.InlineData.MIMEType
				if mimeType == "" {
					mimeType = "image/png"
				}

				return &GenerateResponse{
					Success:    true,
					ImageBytes: part.InlineData.Data,
					MimeType:   mimeType,
				}, nil
			}
		}
	}

	return &GenerateResponse{
		Success:      false,
		ErrorMessage: "No image generated from Gemini",
	}, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func floatPtr(f float64) *float32 {
	f32 := float32(f)
	return &f32
}
