package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG 디코더 등록
	_ "image/png"  // PNG 디코더 등록
	"log"
	"strings"

	_ "github.com/kolesa-team/go-webp/decoder" // WebP 디코더 등록
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// ConvertImageToBase64 - 이미지 바이너리를 base64로 변환
func ConvertImageToBase64(imageData []byte) string {
	return base64.StdEncoding.EncodeToString(imageData)
}

// BuildDataURL - mime + 바이너리로 data URL 생성
func BuildDataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL - data URL에서 mime 타입과 base64 본문 분리
// "data:image/png;base64,AAAA..." → ("image/png", "AAAA...")
func ParseDataURL(dataURL string) (mimeType string, b64 string, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", "", fmt.Errorf("not a data URL")
	}

	rest := dataURL[len("data:"):]
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return "", "", fmt.Errorf("malformed data URL: no comma")
	}

	meta := rest[:comma]
	b64 = rest[comma+1:]

	mimeType = meta
	if semi := strings.Index(meta, ";"); semi >= 0 {
		mimeType = meta[:semi]
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	return mimeType, b64, nil
}

// ConvertToWebP - PNG/JPEG 바이너리를 WebP로 변환
func ConvertToWebP(imageData []byte, quality float32) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var webpBuffer bytes.Buffer
	if err := webp.Encode(&webpBuffer, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}

	webpData := webpBuffer.Bytes()
	log.Printf("✅ %s converted to WebP: %d bytes → %d bytes (%.1f%% reduction)",
		format, len(imageData), len(webpData),
		float64(len(imageData)-len(webpData))/float64(len(imageData))*100)

	return webpData, nil
}
