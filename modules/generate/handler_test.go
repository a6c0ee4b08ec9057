package generate

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"vowshot-server/modules/common/config"
)

const testUserID = "0b9fce30-1c2d-4a5b-8e6f-7a8b9c0d1e2f"

// fakeBackend - Supabase REST + GoTrue 흉내 (generate 플로우에서 쓰는 경로만)
type fakeBackend struct {
	mu               sync.Mutex
	balance          int
	patchCalls       int
	modelConfigsJSON string
}

func (f *fakeBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/auth/v1/user"):
			fmt.Fprintf(w, `{"id":"%s","aud":"authenticated","email":"bride@example.com"}`, testUserID)
		case strings.Contains(r.URL.Path, "/profiles") && r.Method == http.MethodGet:
			fmt.Fprintf(w, `[{"credits":%d}]`, f.balance)
		case strings.Contains(r.URL.Path, "/profiles") && r.Method == http.MethodPatch:
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			if v, ok := body["credits"].(float64); ok {
				f.balance = int(v)
			}
			f.patchCalls++
			w.Write([]byte(`[]`))
		case strings.Contains(r.URL.Path, "/model_configs"):
			fmt.Fprint(w, f.modelConfigsJSON)
		case strings.Contains(r.URL.Path, "/credit_transactions"):
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}
}

// newTestHandler - fake 백엔드/업스트림에 연결된 핸들러 구성
func newTestHandler(t *testing.T, backend *fakeBackend, upstreamURL string) *Handler {
	t.Helper()

	ts := httptest.NewServer(backend.handler())
	t.Cleanup(ts.Close)

	backend.modelConfigsJSON = fmt.Sprintf(`[{"source":"openai","type":"generate-image",
		"status":"active","api_base_url":"%s","api_key":"upstream-key","model_name":"wedding-v1"}]`, upstreamURL)

	t.Setenv("SUPABASE_URL", ts.URL)
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")
	t.Setenv("GENERATION_COST", "15")
	if _, err := config.LoadConfig(); err != nil {
		t.Fatalf("load config: %v", err)
	}

	return NewHandler()
}

func doGenerate(h *Handler, body string, withAuth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if withAuth {
		req.Header.Set("Authorization", "Bearer session-token")
	}

	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)
	return rec
}

func TestHandleGenerateStreamsAndDebitsCredits(t *testing.T) {
	const upstreamStream = "data: {\"choices\":[{\"delta\":{\"content\":\"![image](https://cdn.example.com/wedding.png)\"}}]}\n\ndata: [DONE]\n\n"

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, upstreamStream)
	}))
	defer upstream.Close()

	backend := &fakeBackend{balance: 20}
	h := newTestHandler(t, backend, upstream.URL)

	rec := doGenerate(h, `{"prompt":"turn this into a wedding photo","image_inputs":["data:image/jpeg;base64,c3JjMQ=="]}`, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}
	if rec.Body.String() != upstreamStream {
		t.Fatalf("stream must be forwarded verbatim, got %q", rec.Body.String())
	}
	if backend.balance != 5 {
		t.Fatalf("expected balance 20-15=5 after success, got %d", backend.balance)
	}
}

func TestHandleGenerateSkipsUnreachableImages(t *testing.T) {
	var imageParts int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, part := range req.Messages[0].Content {
			if part.Type == "image_url" {
				imageParts++
			}
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer upstream.Close()

	backend := &fakeBackend{balance: 20}
	h := newTestHandler(t, backend, upstream.URL)

	// 죽은 URL 1개 + 유효한 data URL 1개
	body := `{"prompt":"wedding","image_inputs":["http://127.0.0.1:1/gone.jpg","data:image/jpeg;base64,c3JjMQ=="]}`
	rec := doGenerate(h, body, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("request must proceed despite one dead image, got %d: %s", rec.Code, rec.Body.String())
	}
	if imageParts != 1 {
		t.Fatalf("only the reachable image should be forwarded, got %d parts", imageParts)
	}
	if backend.balance != 5 {
		t.Fatalf("successful request must keep the debit, balance=%d", backend.balance)
	}
}

func TestHandleGenerateRefundsOnUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"capacity exceeded"}}`)
	}))
	defer upstream.Close()

	backend := &fakeBackend{balance: 20}
	h := newTestHandler(t, backend, upstream.URL)

	rec := doGenerate(h, `{"prompt":"wedding please"}`, true)

	// 업스트림 상태를 그대로 전달하고, 이미 차감한 크레딧은 복구
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected upstream 503 to pass through, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("error response must be JSON, got %q", ct)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if !strings.Contains(resp.Error, "503") {
		t.Fatalf("expected upstream status in error message, got %q", resp.Error)
	}
	if backend.balance != 20 {
		t.Fatalf("expected balance restored to 20, got %d", backend.balance)
	}
	if backend.patchCalls != 2 {
		t.Fatalf("expected debit+refund writes, got %d", backend.patchCalls)
	}
}

func TestHandleGenerateWithoutAuthHasNoSideEffects(t *testing.T) {
	backend := &fakeBackend{balance: 20}
	h := newTestHandler(t, backend, "http://unused.invalid")

	rec := doGenerate(h, `{"prompt":"wedding"}`, false)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if backend.patchCalls != 0 || backend.balance != 20 {
		t.Fatalf("auth failure must not touch credits: balance=%d writes=%d", backend.balance, backend.patchCalls)
	}
}

func TestHandleGenerateInsufficientCredits(t *testing.T) {
	backend := &fakeBackend{balance: 10}
	h := newTestHandler(t, backend, "http://unused.invalid")

	rec := doGenerate(h, `{"prompt":"wedding"}`, true)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if resp.CurrentCredits == nil || *resp.CurrentCredits != 10 {
		t.Fatalf("expected current_credits=10, got %+v", resp.CurrentCredits)
	}
	if resp.RequiredCredits == nil || *resp.RequiredCredits != 15 {
		t.Fatalf("expected required_credits=15, got %+v", resp.RequiredCredits)
	}
	if backend.patchCalls != 0 {
		t.Fatalf("no write should happen when credits are short, got %d", backend.patchCalls)
	}
}

func TestHandleGenerateRateLimitReturnsRetryAfter(t *testing.T) {
	backend := &fakeBackend{balance: 1000}
	t.Setenv("RATE_LIMIT_MAX", "1")
	t.Setenv("RATE_LIMIT_WINDOW_SEC", "60")

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer upstream.Close()

	h := newTestHandler(t, backend, upstream.URL)

	if rec := doGenerate(h, `{"prompt":"wedding"}`, true); rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}

	rec := doGenerate(h, `{"prompt":"wedding"}`, true)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second request, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if resp.RetryAfter == nil || *resp.RetryAfter < 1 {
		t.Fatalf("expected retry_after hint, got %+v", resp.RetryAfter)
	}

	// 제한에 걸린 요청은 크레딧을 건드리지 않는다
	if backend.balance != 1000-15 {
		t.Fatalf("only the first request should debit, balance=%d", backend.balance)
	}
}
