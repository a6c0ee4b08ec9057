package auth

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/supabase-community/gotrue-go"

	"vowshot-server/modules/common/config"
)

// Client - GoTrue 세션 검증 클라이언트
type Client struct {
	gotrue gotrue.Client
}

// ErrNoToken is returned when the Authorization header is missing or malformed.
var ErrNoToken = fmt.Errorf("missing or malformed bearer token")

// NewClient - Auth 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()

	apiKey := cfg.SupabaseAnonKey
	if apiKey == "" {
		apiKey = cfg.SupabaseServiceKey
	}

	client := gotrue.New("vowshot", apiKey).WithCustomGoTrueURL(cfg.AuthURL())

	return &Client{gotrue: client}
}

// UserFromRequest - Authorization 헤더에서 유저 ID 추출
// 토큰이 없거나 세션이 유효하지 않으면 에러 (부수효과 없음)
func (c *Client) UserFromRequest(r *http.Request) (string, error) {
	token, err := BearerToken(r)
	if err != nil {
		return "", err
	}
	return c.UserFromToken(token)
}

// UserFromToken - 토큰으로 GoTrue 세션 조회
func (c *Client) UserFromToken(token string) (string, error) {
	user, err := c.gotrue.WithToken(token).GetUser()
	if err != nil {
		log.Printf("⚠️  [Auth] Session lookup failed: %v", err)
		return "", fmt.Errorf("invalid session: %w", err)
	}
	return user.ID.String(), nil
}

// BearerToken - Authorization: Bearer <token> 파싱
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrNoToken
	}

	return strings.TrimSpace(parts[1]), nil
}

// IsAdmin - 관리자 키 검증 (X-Admin-Key 헤더)
func IsAdmin(r *http.Request) bool {
	cfg := config.GetConfig()
	if cfg.AdminAPIKey == "" {
		return false
	}
	return r.Header.Get("X-Admin-Key") == cfg.AdminAPIKey
}
