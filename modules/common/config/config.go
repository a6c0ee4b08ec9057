package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Server
	Port string

	// Supabase
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseAnonKey    string

	// Gemini API (직접 호출용, 콤마로 여러 키 지원)
	GeminiAPIKeys []string
	GeminiModel   string

	// OpenAI-compatible fallback (model_configs 테이블에 active row가 없을 때)
	AIBaseURL string
	AIAPIKey  string
	AIModel   string

	// S3 호환 스토리지
	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool

	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Admin
	AdminAPIKey string

	// Credit
	GenerationCost int

	// Rate limit (프로세스 로컬, 고정 윈도우)
	RateLimitWindowSec int
	RateLimitMax       int
}

var globalConfig *Config

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	// Redis UseTLS 파싱
	redisTLS := true // 기본값
	if tlsStr := os.Getenv("REDIS_USE_TLS"); tlsStr != "" {
		if parsed, err := strconv.ParseBool(tlsStr); err == nil {
			redisTLS = parsed
		}
	}

	pathStyle := false
	if psStr := os.Getenv("S3_USE_PATH_STYLE"); psStr != "" {
		if parsed, err := strconv.ParseBool(psStr); err == nil {
			pathStyle = parsed
		}
	}

	// GenerationCost 파싱
	generationCost := 15 // 기본값 (15 크레딧/생성 1회)
	if costStr := os.Getenv("GENERATION_COST"); costStr != "" {
		if parsed, err := strconv.Atoi(costStr); err == nil && parsed > 0 {
			generationCost = parsed
		}
	}

	rateWindow := 60
	if wStr := os.Getenv("RATE_LIMIT_WINDOW_SEC"); wStr != "" {
		if parsed, err := strconv.Atoi(wStr); err == nil && parsed > 0 {
			rateWindow = parsed
		}
	}

	rateMax := 5
	if mStr := os.Getenv("RATE_LIMIT_MAX"); mStr != "" {
		if parsed, err := strconv.Atoi(mStr); err == nil && parsed > 0 {
			rateMax = parsed
		}
	}

	globalConfig = &Config{
		// Server
		Port: getEnv("PORT", "8080"),

		// Supabase
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),

		// Gemini API
		GeminiAPIKeys: splitKeys(getEnv("GEMINI_API_KEYS", os.Getenv("GEMINI_API_KEY"))),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),

		// OpenAI-compatible fallback
		AIBaseURL: getEnv("AI_API_BASE_URL", "https://generativelanguage.googleapis.com"),
		AIAPIKey:  getEnv("AI_API_KEY", ""),
		AIModel:   getEnv("AI_MODEL", "gemini-2.5-flash-image"),

		// S3
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
		S3Bucket:        getEnv("S3_BUCKET", "vowshot"),
		S3PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
		S3UsePathStyle:  pathStyle,

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   redisTLS,

		// Admin
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		// Credit
		GenerationCost: generationCost,

		// Rate limit
		RateLimitWindowSec: rateWindow,
		RateLimitMax:       rateMax,
	}

	// 필수 환경변수 검증
	if err := globalConfig.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Supabase: %s", globalConfig.SupabaseURL)
	log.Printf("   Gemini: %s (%d keys)", globalConfig.GeminiModel, len(globalConfig.GeminiAPIKeys))
	log.Printf("   Redis: %s:%s (TLS: %v)", globalConfig.RedisHost, globalConfig.RedisPort, globalConfig.RedisUseTLS)
	log.Printf("   Credit: %d per generation", globalConfig.GenerationCost)
	log.Printf("   Rate limit: %d req / %ds", globalConfig.RateLimitMax, globalConfig.RateLimitWindowSec)

	return globalConfig, nil
}

// GetConfig - 로드된 설정 가져오기
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	return nil
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitKeys - 콤마로 구분된 API 키 리스트 파싱
func splitKeys(raw string) []string {
	keys := []string{}
	for _, k := range strings.Split(raw, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// AuthURL - GoTrue 엔드포인트
func (c *Config) AuthURL() string {
	return strings.TrimRight(c.SupabaseURL, "/") + "/auth/v1"
}
