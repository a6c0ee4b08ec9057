package generate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"vowshot-server/modules/common/auth"
	"vowshot-server/modules/common/config"
	"vowshot-server/modules/common/credit"
	"vowshot-server/modules/common/database"
	"vowshot-server/modules/common/ratelimit"
)

// Service - provider 호출 담당 (handler와 worker에서 공유)
type Service struct {
	httpClient *http.Client
	db         *database.Client
}

// NewService - Generate 서비스 생성
// httpClient에 전체 타임아웃을 걸지 않음 - 생성 호출은 런타임/클라이언트 측 타임아웃에 맡김
func NewService() *Service {
	return &Service{
		httpClient: &http.Client{},
		db:         database.NewClient(),
	}
}

type Handler struct {
	service *Service
	auth    *auth.Client
	credits *credit.Client
	limiter *ratelimit.Limiter
}

// NewHandler - Generate 핸들러 생성
func NewHandler() *Handler {
	cfg := config.GetConfig()

	return &Handler{
		service: NewService(),
		auth:    auth.NewClient(),
		credits: credit.NewClient(),
		limiter: ratelimit.NewLimiter(
			time.Duration(cfg.RateLimitWindowSec)*time.Second,
			cfg.RateLimitMax,
		),
	}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/generate", h.HandleGenerate).Methods("POST", "OPTIONS")
	log.Println("✅ Generate routes registered: /api/generate")
}

// HandleGenerate - POST /api/generate
// 인증 → 요청 제한 → 크레딧 차감 → 검증 → 프롬프트 합성 → 이미지 인제스트
// → provider 호출 → SSE 스트리밍. 차감 이후 실패하면 전액 환불.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := r.Context()
	cfg := config.GetConfig()

	// 1. 인증 (실패 시 부수효과 없음)
	userID, err := h.auth.UserFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	// 2. 요청 제한 (차감 전이므로 크레딧 변동 없음)
	if allowed, retryAfter := h.limiter.Allow(userID); !allowed {
		log.Printf("⚠️  [Generate] Rate limited: user %s (retry after %ds)", userID, retryAfter)
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error:      "rate limit exceeded, slow down",
			RetryAfter: &retryAfter,
		})
		return
	}

	// 3. 크레딧 확인 + 차감 (부족하면 변동 없이 402)
	cost := cfg.GenerationCost
	preBalance, err := h.credits.CheckAndDebit(ctx, userID, cost)
	if err != nil {
		var insuff *credit.InsufficientError
		if errors.As(err, &insuff) {
			writeJSON(w, http.StatusPaymentRequired, ErrorResponse{
				Error:           "insufficient credits",
				CurrentCredits:  &insuff.Current,
				RequiredCredits: &insuff.Required,
			})
			return
		}
		log.Printf("❌ [Generate] Credit check failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to check credits")
		return
	}

	// 차감 이후의 모든 실패 경로는 환불
	refund := func() {
		if err := h.credits.Refund(ctx, userID, preBalance); err != nil {
			log.Printf("⚠️  [Generate] Refund failed for user %s: %v", userID, err)
		}
	}

	// 예기치 않은 panic 시에도 베스트에포트 환불
	// 인증 헤더로 유저를 다시 조회해서 복구 (catch 시점의 독립 조회)
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("❌ [Generate] Unexpected panic: %v", rec)
			if token, tokenErr := auth.BearerToken(r); tokenErr == nil {
				if recoveredUser, lookupErr := h.auth.UserFromToken(token); lookupErr == nil {
					if refundErr := h.credits.Refund(ctx, recoveredUser, preBalance); refundErr != nil {
						log.Printf("⚠️  [Generate] Panic refund failed: %v", refundErr)
					}
				}
			}
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}()

	// 4. 요청 바디 검증 (관측된 흐름대로 차감 이후에 수행, 실패 시 환불)
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ [Generate] Invalid request body: %v", err)
		refund()
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		refund()
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	// 5. 프롬프트 합성 (이미 템플릿이면 그대로)
	finalPrompt := ComposePrompt(req.Prompt)

	// 6. 이미지 인제스트 - 순차 처리, 개별 실패는 건너뜀
	imageRefs := FilterImageInputs(req.ImageInputs)
	imageDataURLs := make([]string, 0, len(imageRefs))
	for i, ref := range imageRefs {
		dataURL, err := h.service.ToBase64DataURL(ctx, ref)
		if err != nil {
			log.Printf("⚠️  [Generate] Skipping image %d: %v", i+1, err)
			continue
		}
		imageDataURLs = append(imageDataURLs, dataURL)
	}

	// 7. provider 설정 확정
	rc, err := h.service.ResolveConfig(req.Model, req.Source)
	if err != nil {
		log.Printf("❌ [Generate] Config resolution failed: %v", err)
		refund()
		writeError(w, http.StatusInternalServerError, "image generation is not configured")
		return
	}

	log.Printf("🚀 [Generate] user=%s, provider=%s, model=%s, images=%d, cost=%d",
		userID, providerName(rc.Kind), rc.Model, len(imageDataURLs), cost)

	// 8. 호출 + 스트리밍
	if err := h.service.Dispatch(ctx, w, rc, finalPrompt, imageDataURLs, &req); err != nil {
		refund()

		var upErr *upstreamError
		if errors.As(err, &upErr) {
			// 업스트림 상태 코드를 그대로 전달, 본문은 redact된 내용
			writeError(w, upErr.Status, upErr.Error())
			return
		}

		log.Printf("❌ [Generate] Dispatch failed: %v", err)
		writeError(w, http.StatusInternalServerError, "image generation failed")
		return
	}
}

func providerName(kind providerKind) string {
	if kind == providerNative {
		return "native"
	}
	return "chat-compatible"
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
