package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"vowshot-server/modules/common/config"
	"vowshot-server/modules/generate"
	"vowshot-server/modules/progress"
	"vowshot-server/modules/project"
	"vowshot-server/modules/template"
	"vowshot-server/modules/worker"
)

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "vowshot-server",
	})
}

func main() {
	// 환경변수 로드
	if _, err := config.LoadConfig(); err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Redis Queue Worker 시작 (백그라운드)
	go worker.StartWorker()

	// 라우터 설정
	r := mux.NewRouter()

	// CORS 미들웨어 적용
	r.Use(enableCORS)

	// 헬스 체크
	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")

	// 모듈 라우트 등록
	generate.NewHandler().RegisterRoutes(r)
	template.NewHandler().RegisterRoutes(r)
	project.NewHandler().RegisterRoutes(r)
	progress.GetHub().RegisterRoutes(r)

	if enqueue := worker.NewEnqueueHandler(); enqueue != nil {
		enqueue.RegisterRoutes(r)
	} else {
		log.Println("⚠️  Enqueue routes disabled (Redis unavailable)")
	}

	// 포트 설정 (Render.com은 PORT 환경변수 사용)
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 VowShot Server starting on port %s", port)
	log.Printf("📡 WebSocket endpoint: ws://localhost:%s/ws", port)
	log.Printf("❤️  Health check: http://localhost:%s/health", port)
	log.Printf("🎨 Generate endpoint: http://localhost:%s/api/generate", port)

	// 서버 시작
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
