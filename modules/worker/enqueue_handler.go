package worker

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"vowshot-server/modules/common/auth"
	"vowshot-server/modules/common/config"
	"vowshot-server/modules/common/database"
	"vowshot-server/modules/common/model"
	redisClient "vowshot-server/modules/common/redis"
)

// EnqueueHandler - 배치 생성 작업 등록
type EnqueueHandler struct {
	rdb  *redis.Client
	db   *database.Client
	auth *auth.Client
}

// EnqueueRequest - POST /api/enqueue 요청 바디
type EnqueueRequest struct {
	ProjectID      string   `json:"project_id"`
	TemplateID     *string  `json:"template_id,omitempty"`
	Prompt         string   `json:"prompt,omitempty"`
	SourcePhotoIDs []string `json:"source_photo_ids"`
	TotalImages    int      `json:"total_images,omitempty"`
}

// EnqueueResponse - Enqueue 응답
type EnqueueResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
	JobID         string `json:"job_id,omitempty"`
	Queue         string `json:"queue,omitempty"`
	QueuePosition int64  `json:"queuePosition,omitempty"`
}

// NewEnqueueHandler - EnqueueHandler 생성
func NewEnqueueHandler() *EnqueueHandler {
	cfg := config.GetConfig()

	rdb := redisClient.Connect(cfg)
	if rdb == nil {
		log.Println("⚠️  [Enqueue] Failed to connect to Redis")
		return nil
	}

	log.Println("✅ [Enqueue] Handler initialized with Redis connection")
	return &EnqueueHandler{
		rdb:  rdb,
		db:   database.NewClient(),
		auth: auth.NewClient(),
	}
}

// RegisterRoutes - 라우트 등록
func (h *EnqueueHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/enqueue", h.HandleEnqueue).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/jobs/{id}", h.HandleJobStatus).Methods("GET", "OPTIONS")
	log.Println("✅ Enqueue routes registered: /api/enqueue, /api/jobs/{id}")
}

// HandleEnqueue - POST /api/enqueue
// generation_jobs 레코드를 만들고 job_id를 Redis 큐에 넣는다
func (h *EnqueueHandler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID, err := h.auth.UserFromRequest(r)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(EnqueueResponse{Success: false, Error: "authentication required"})
		return
	}

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ [Enqueue] Invalid request: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(EnqueueResponse{Success: false, Error: "invalid request body"})
		return
	}

	if req.ProjectID == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(EnqueueResponse{Success: false, Error: "project_id is required"})
		return
	}
	if len(req.SourcePhotoIDs) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(EnqueueResponse{Success: false, Error: "source_photo_ids is required"})
		return
	}
	if (req.TemplateID == nil || *req.TemplateID == "") && strings.TrimSpace(req.Prompt) == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(EnqueueResponse{Success: false, Error: "template_id or prompt is required"})
		return
	}

	// 소유권 확인
	if _, err := h.db.GetProject(req.ProjectID, userID); err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(EnqueueResponse{Success: false, Error: "project not found"})
		return
	}

	totalImages := req.TotalImages
	if totalImages <= 0 {
		totalImages = len(req.SourcePhotoIDs)
	}

	job := &model.GenerationJob{
		JobID:          uuid.New().String(),
		UserID:         userID,
		ProjectID:      req.ProjectID,
		TemplateID:     req.TemplateID,
		Prompt:         req.Prompt,
		SourcePhotoIDs: req.SourcePhotoIDs,
		TotalImages:    totalImages,
	}

	created, err := h.db.CreateJob(r.Context(), job)
	if err != nil {
		log.Printf("❌ [Enqueue] Failed to create job: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(EnqueueResponse{Success: false, Error: "failed to create job"})
		return
	}

	log.Printf("📥 [Enqueue] Job created: %s (project: %s)", created.JobID, req.ProjectID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := h.rdb.LPush(ctx, redisClient.QueueKey, created.JobID).Result(); err != nil {
		log.Printf("❌ [Enqueue] Redis LPUSH failed: %v", err)
		failMsg := "failed to enqueue"
		h.db.UpdateJobStatus(ctx, created.JobID, model.StatusFailed, &failMsg)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(EnqueueResponse{Success: false, Error: err.Error()})
		return
	}

	queueLen, _ := h.rdb.LLen(ctx, redisClient.QueueKey).Result()

	log.Printf("✅ [Enqueue] Job %s enqueued (position: %d)", created.JobID, queueLen)

	json.NewEncoder(w).Encode(EnqueueResponse{
		Success:       true,
		Message:       "Job enqueued successfully",
		JobID:         created.JobID,
		Queue:         redisClient.QueueKey,
		QueuePosition: queueLen,
	})
}

// HandleJobStatus - GET /api/jobs/{id}
func (h *EnqueueHandler) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID, err := h.auth.UserFromRequest(r)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
		return
	}

	jobID := mux.Vars(r)["id"]

	job, err := h.db.FetchJob(jobID)
	if err != nil || job.UserID != userID {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "job not found"})
		return
	}

	json.NewEncoder(w).Encode(job)
}
