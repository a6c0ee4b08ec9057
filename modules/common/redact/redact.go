package redact

import (
	"encoding/json"
	"fmt"
)

// 로그로 내보내기 전에 base64 페이로드를 마스킹하는 베스트에포트 워커.
// 구조적 보장은 아님 - 짧거나 특이한 형태의 페이로드는 그대로 남을 수 있음.

const (
	longValueThreshold = 1000
	base64ProbeLen     = 100
)

// base64 페이로드를 담는 것으로 알려진 키들
var sensitiveKeys = map[string]bool{
	"data":     true,
	"b64_json": true,
}

// JSON - raw JSON 바이트를 파싱해서 마스킹 후 재직렬화
// 파싱 실패 시 앞부분만 잘라서 반환
func JSON(raw []byte) string {
	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if len(raw) > longValueThreshold {
			return fmt.Sprintf("%s... [truncated, %d bytes total]", string(raw[:longValueThreshold]), len(raw))
		}
		return string(raw)
	}

	out, err := json.Marshal(walk(parsed, ""))
	if err != nil {
		return fmt.Sprintf("[unloggable payload: %v]", err)
	}
	return string(out)
}

func walk(v interface{}, key string) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			out[k] = walk(child, k)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = walk(child, key)
		}
		return out
	case string:
		if shouldMask(key, val) {
			return fmt.Sprintf("[base64 data omitted: %d chars]", len(val))
		}
		return val
	default:
		return val
	}
}

func shouldMask(key, s string) bool {
	if len(s) <= longValueThreshold {
		return false
	}
	if sensitiveKeys[key] {
		return true
	}
	return looksLikeBase64(s)
}

// looksLikeBase64 - 앞 100자가 모두 base64 문자인지 확인
func looksLikeBase64(s string) bool {
	probe := s
	if len(probe) > base64ProbeLen {
		probe = probe[:base64ProbeLen]
	}
	for i := 0; i < len(probe); i++ {
		c := probe[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '+' || c == '/' || c == '=':
		default:
			return false
		}
	}
	return true
}
