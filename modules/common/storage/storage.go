package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"vowshot-server/modules/common/config"
	"vowshot-server/modules/common/utils"
)

// Client - S3 호환 스토리지 클라이언트 (Supabase Storage S3 endpoint, MinIO, R2 호환)
type Client struct {
	s3            *s3.Client
	bucket        string
	publicBaseURL string
}

// NewClient - Storage 클라이언트 생성
func NewClient() (*Client, error) {
	cfg := config.GetConfig()

	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.S3PublicBaseURL == "" {
		return nil, fmt.Errorf("s3 public base url is required")
	}

	options := s3.Options{
		Region:       cfg.S3Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		UsePathStyle: cfg.S3UsePathStyle,
	}
	if cfg.S3Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.S3Endpoint)
	}

	log.Printf("✅ Storage client initialized (bucket: %s)", cfg.S3Bucket)
	return &Client{
		s3:            s3.New(options),
		bucket:        cfg.S3Bucket,
		publicBaseURL: strings.TrimRight(cfg.S3PublicBaseURL, "/"),
	}, nil
}

// Upload - 바이너리 업로드, 공개 URL 반환
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no data to upload")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	log.Printf("📤 Uploading to storage: %s (%d bytes)", key, len(data))

	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to storage: %w", err)
	}

	return c.PublicURL(key), nil
}

// UploadGenerated - 생성 결과 업로드 (WebP 변환 후, quality 90)
func (c *Client) UploadGenerated(ctx context.Context, userID string, imageData []byte) (key string, publicURL string, size int64, err error) {
	webpData, convErr := utils.ConvertToWebP(imageData, 90.0)
	if convErr != nil {
		// 변환 실패 시 원본 그대로 업로드
		log.Printf("⚠️  WebP conversion failed, uploading original: %v", convErr)
		key = generatedKey(userID, "png")
		url, upErr := c.Upload(ctx, key, imageData, "image/png")
		return key, url, int64(len(imageData)), upErr
	}

	key = generatedKey(userID, "webp")
	url, upErr := c.Upload(ctx, key, webpData, "image/webp")
	return key, url, int64(len(webpData)), upErr
}

// UploadOriginal - 사용자 원본 업로드
func (c *Client) UploadOriginal(ctx context.Context, userID, projectID string, data []byte, contentType, ext string) (string, string, error) {
	timestamp := time.Now().UnixNano() / int64(time.Millisecond)
	key := fmt.Sprintf("uploads/user-%s/project-%s/upload_%d_%06d.%s",
		userID, projectID, timestamp, rand.Intn(999999), ext)

	url, err := c.Upload(ctx, key, data, contentType)
	return key, url, err
}

// Download - 오브젝트 다운로드
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from storage: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read storage object: %w", err)
	}

	log.Printf("📥 Downloaded from storage: %s (%d bytes)", key, len(data))
	return data, nil
}

// Delete - 오브젝트 삭제
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete storage object: %w", err)
	}
	return nil
}

// PublicURL - 공개 URL 조립
func (c *Client) PublicURL(key string) string {
	return c.publicBaseURL + "/" + key
}

func generatedKey(userID, ext string) string {
	timestamp := time.Now().UnixNano() / int64(time.Millisecond)
	return fmt.Sprintf("generated/user-%s/generated_%d_%06d.%s", userID, timestamp, rand.Intn(999999), ext)
}
