package generate

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"vowshot-server/modules/common/utils"
)

// ToBase64DataURL - 이미지 참조를 provider에 넘길 data URL로 변환
// 이미 data: 형태면 그대로 반환 (네트워크 호출 없음), 아니면 1회 fetch 후 인코딩
func (s *Service) ToBase64DataURL(ctx context.Context, ref string) (string, error) {
	if strings.HasPrefix(ref, "data:") {
		return ref, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", ref, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read image body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	return utils.BuildDataURL(mimeType, data), nil
}

// FilterImageInputs - data:image/... 또는 http(s):// 만 통과, 최대 3개로 자름
// 걸러진 항목은 조용히 버림 (요청 전체를 실패시키지 않음)
func FilterImageInputs(inputs []string) []string {
	filtered := make([]string, 0, len(inputs))
	for _, ref := range inputs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if strings.HasPrefix(ref, "data:image/") ||
			strings.HasPrefix(ref, "http://") ||
			strings.HasPrefix(ref, "https://") {
			filtered = append(filtered, ref)
		}
	}

	if len(filtered) > maxImageInputs {
		log.Printf("⚠️  [Generate] %d image inputs provided, truncating to %d", len(filtered), maxImageInputs)
		filtered = filtered[:maxImageInputs]
	}
	return filtered
}
