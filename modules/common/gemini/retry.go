package gemini

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/genai"
)

const maxRetriesPerKey = 3

// GenerateContentWithRetry - 429 에러 시 여러 API 키로 재시도
// 각 키당 최대 3번 시도, 429가 아닌 에러는 바로 반환
func GenerateContentWithRetry(
	ctx context.Context,
	apiKeys []string,
	model string,
	contents []*genai.Content,
	genConfig *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {

	if len(apiKeys) == 0 {
		return nil, fmt.Errorf("no API keys provided")
	}

	var lastErr error

	for keyIndex, apiKey := range apiKeys {
		for attempt := 1; attempt <= maxRetriesPerKey; attempt++ {
			if attempt > 1 {
				log.Printf("🔄 [Gemini] Retry %d/%d for key #%d", attempt, maxRetriesPerKey, keyIndex+1)
			}

			client, err := genai.NewClient(ctx, &genai.ClientConfig{
				APIKey:  apiKey,
				Backend: genai.BackendGeminiAPI,
			})
			if err != nil {
				lastErr = err
				continue
			}

			result, err := client.Models.GenerateContent(ctx, model, contents, genConfig)
			if err == nil {
				if attempt > 1 || keyIndex > 0 {
					log.Printf("✅ [Gemini] Success with key #%d (attempt %d)", keyIndex+1, attempt)
				}
				return result, nil
			}

			lastErr = err

			if !isRateLimitError(err) {
				log.Printf("❌ [Gemini] Key #%d failed with non-429 error: %v", keyIndex+1, err)
				return nil, err
			}

			log.Printf("⚠️  [Gemini] Key #%d hit rate limit (attempt %d/%d)", keyIndex+1, attempt, maxRetriesPerKey)
			if attempt < maxRetriesPerKey {
				time.Sleep(2 * time.Second)
			}
		}

		log.Printf("⚠️  [Gemini] Key #%d exhausted, trying next key...", keyIndex+1)
	}

	return nil, fmt.Errorf("all %d API keys exhausted (%d attempts each), last error: %w",
		len(apiKeys), maxRetriesPerKey, lastErr)
}

// isRateLimitError - 429 / quota 에러 판별
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota")
}
