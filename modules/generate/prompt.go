package generate

import "strings"

// 웨딩 보정 프롬프트 템플릿
// 프론트에서 이미 래핑해서 보내는 경우가 있어서 마커로 이중 래핑을 방지함

const promptPreamble = `You are an expert wedding photo retoucher and stylist. ` +
	`Transform the provided photo into a polished, professional wedding photograph. ` +
	`Follow every rule below exactly.`

const identityDirectives = `[IDENTITY PRESERVATION - ABSOLUTE RULES]
1. Keep every person's facial features EXACTLY as in the source photo: eyes, nose, lips, jawline, face shape.
2. Do NOT beautify, slim, age, or de-age any face. The person must be instantly recognizable.
3. Preserve skin tone, facial hair, glasses, and distinctive marks (moles, scars, freckles).
4. Keep each person's hairstyle and hair color unless the editing request explicitly asks to change them.
5. Keep body proportions natural and consistent with the source photo. No stretched or distorted limbs.
6. When multiple people appear, preserve EACH person's identity independently - never blend faces.`

const promptClosing = `Render the result as one single photorealistic wedding photograph with professional studio quality.`

// 이중 래핑 방지 마커 (대소문자 무시 substring 매칭)
var templateMarkers = []string{
	"IDENTITY PRESERVATION - ABSOLUTE RULES",
	"SPECIFIC EDITING REQUEST",
}

// ComposePrompt - 사용자 프롬프트를 웨딩 템플릿으로 래핑
// 이미 마커가 포함돼 있으면 그대로 반환 (멱등)
func ComposePrompt(rawPrompt string) string {
	upper := strings.ToUpper(rawPrompt)
	for _, marker := range templateMarkers {
		if strings.Contains(upper, strings.ToUpper(marker)) {
			return rawPrompt
		}
	}

	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\n")
	b.WriteString(identityDirectives)
	b.WriteString("\n\n[SPECIFIC EDITING REQUEST]\n")
	b.WriteString(rawPrompt)
	b.WriteString("\n\n")
	b.WriteString(promptClosing)
	return b.String()
}
