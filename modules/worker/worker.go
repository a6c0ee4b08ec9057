package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"vowshot-server/modules/common/config"
	"vowshot-server/modules/common/credit"
	"vowshot-server/modules/common/database"
	"vowshot-server/modules/common/model"
	redisClient "vowshot-server/modules/common/redis"
	"vowshot-server/modules/common/storage"
	"vowshot-server/modules/common/utils"
	"vowshot-server/modules/generate"
	"vowshot-server/modules/progress"
	"vowshot-server/modules/submodule/nanobanana"
)

// StartWorker - Redis Queue Worker 시작
func StartWorker() {
	log.Println("🔄 Redis Queue Worker starting...")

	cfg := config.GetConfig()

	rdb := redisClient.Connect(cfg)
	if rdb == nil {
		log.Println("❌ Worker disabled: failed to connect to Redis")
		return
	}
	log.Println("✅ Redis connected successfully")

	dbClient := database.NewClient()
	if dbClient == nil {
		log.Println("❌ Worker disabled: failed to initialize Database client")
		return
	}

	log.Printf("👀 Watching queue: %s", redisClient.QueueKey)

	ctx := context.Background()

	for {
		// Job 받기 (BRPOP - Blocking Right Pop)
		result, err := rdb.BRPop(ctx, 0, redisClient.QueueKey).Result()
		if err != nil {
			log.Printf("❌ Redis BRPOP error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		// result[0]은 큐 이름, result[1]이 실제 job_id
		jobID := result[1]
		log.Printf("🎯 Received new job: %s", jobID)

		go processJob(ctx, dbClient, jobID)
	}
}

// processJob - 배치 웨딩 사진 생성
// 크레딧 선차감 → 원본 다운로드 → 장당 생성/업로드 → 실패분 환불
func processJob(ctx context.Context, dbClient *database.Client, jobID string) {
	log.Printf("🚀 Processing job: %s", jobID)

	cfg := config.GetConfig()
	hub := progress.GetHub()

	job, err := dbClient.FetchJob(jobID)
	if err != nil {
		log.Printf("❌ Failed to fetch job %s: %v", jobID, err)
		return
	}

	if job.JobStatus != model.StatusPending {
		log.Printf("⚠️  Job %s is %s, skipping", jobID, job.JobStatus)
		return
	}

	fail := func(msg string) {
		log.Printf("❌ Job %s failed: %s", jobID, msg)
		dbClient.UpdateJobStatus(ctx, jobID, model.StatusFailed, &msg)
		hub.Broadcast(progress.JobUpdate{
			JobID:        jobID,
			ProjectID:    job.ProjectID,
			Status:       model.StatusFailed,
			ErrorMessage: msg,
		})
	}

	store, err := storage.NewClient()
	if err != nil {
		fail(fmt.Sprintf("storage unavailable: %v", err))
		return
	}

	genService := nanobanana.NewService()
	if genService == nil {
		fail("generation service unavailable")
		return
	}

	// 프롬프트 확정: 템플릿 우선, 없으면 요청 프롬프트
	rawPrompt := job.Prompt
	if job.TemplateID != nil && *job.TemplateID != "" {
		tpl, err := dbClient.GetTemplate(*job.TemplateID)
		if err != nil {
			fail(fmt.Sprintf("template lookup failed: %v", err))
			return
		}
		rawPrompt = tpl.Prompt
	}
	finalPrompt := generate.ComposePrompt(rawPrompt)

	// 크레딧 선차감 (장당 단가 x 총 이미지 수)
	creditClient := credit.NewClient()
	totalCost := cfg.GenerationCost * job.TotalImages
	preBalance, err := creditClient.CheckAndDebit(ctx, job.UserID, totalCost)
	if err != nil {
		fail(fmt.Sprintf("credit debit failed: %v", err))
		return
	}

	dbClient.UpdateJobStatus(ctx, jobID, model.StatusProcessing, nil)
	hub.Broadcast(progress.JobUpdate{
		JobID:       jobID,
		ProjectID:   job.ProjectID,
		Status:      model.StatusProcessing,
		TotalImages: job.TotalImages,
	})

	// 원본 사진 다운로드
	var inputs []nanobanana.InputImage
	for _, photoID := range job.SourcePhotoIDs {
		photo, err := dbClient.GetPhoto(photoID, job.UserID)
		if err != nil {
			log.Printf("⚠️  Source photo %s not found, skipping: %v", photoID, err)
			continue
		}

		data, err := store.Download(ctx, photo.ObjectKey)
		if err != nil {
			log.Printf("⚠️  Failed to download %s, skipping: %v", photo.ObjectKey, err)
			continue
		}

		inputs = append(inputs, nanobanana.InputImage{
			Data:     utils.ConvertImageToBase64(data),
			MimeType: photo.MimeType,
		})
	}

	if len(inputs) == 0 {
		creditClient.Refund(ctx, job.UserID, preBalance)
		fail("no usable source photos")
		return
	}

	// 장당 생성 → 업로드 → 레코드 → 진행 상황 브로드캐스트
	completed := 0
	var photoURLs []string

	for i := 0; i < job.TotalImages; i++ {
		resp, err := genService.Generate(ctx, &nanobanana.GenerateRequest{
			Prompt: finalPrompt,
			Images: inputs,
		})
		if err != nil || !resp.Success {
			errMsg := "generation failed"
			if err != nil {
				errMsg = err.Error()
			} else if resp.ErrorMessage != "" {
				errMsg = resp.ErrorMessage
			}
			log.Printf("⚠️  Image %d/%d failed: %s", i+1, job.TotalImages, errMsg)
			continue
		}

		key, publicURL, size, err := store.UploadGenerated(ctx, job.UserID, resp.ImageBytes)
		if err != nil {
			log.Printf("⚠️  Image %d/%d upload failed: %v", i+1, job.TotalImages, err)
			continue
		}

		if _, err := dbClient.InsertProjectPhoto(&model.ProjectPhoto{
			ProjectID: job.ProjectID,
			UserID:    job.UserID,
			Kind:      model.PhotoKindGenerated,
			ObjectKey: key,
			PublicURL: publicURL,
			FileSize:  size,
			MimeType:  "image/webp",
		}); err != nil {
			log.Printf("⚠️  Image %d/%d record failed: %v", i+1, job.TotalImages, err)
			continue
		}

		completed++
		photoURLs = append(photoURLs, publicURL)

		dbClient.UpdateJobProgress(ctx, jobID, completed)
		hub.Broadcast(progress.JobUpdate{
			JobID:           jobID,
			ProjectID:       job.ProjectID,
			Status:          model.StatusProcessing,
			TotalImages:     job.TotalImages,
			CompletedImages: completed,
			PhotoURLs:       photoURLs,
		})
	}

	// 실패분 환불: 완료 장수만큼만 과금된 잔액으로 복구
	if completed < job.TotalImages {
		refundedBalance := preBalance - cfg.GenerationCost*completed
		if err := creditClient.Refund(ctx, job.UserID, refundedBalance); err != nil {
			log.Printf("⚠️  Partial refund failed for job %s: %v", jobID, err)
		} else {
			log.Printf("💰 Refunded %d credits for %d failed images",
				cfg.GenerationCost*(job.TotalImages-completed), job.TotalImages-completed)
		}
	}

	if completed == 0 {
		fail("all images failed to generate")
		return
	}

	// 첫 생성본을 프로젝트 커버로
	if err := dbClient.UpdateProjectCover(job.ProjectID, photoURLs[0]); err != nil {
		log.Printf("⚠️  Failed to update project cover: %v", err)
	}

	dbClient.UpdateJobStatus(ctx, jobID, model.StatusCompleted, nil)
	hub.Broadcast(progress.JobUpdate{
		JobID:           jobID,
		ProjectID:       job.ProjectID,
		Status:          model.StatusCompleted,
		TotalImages:     job.TotalImages,
		CompletedImages: completed,
		PhotoURLs:       photoURLs,
	})

	log.Printf("✅ Job %s completed: %d/%d images", jobID, completed, job.TotalImages)
}
