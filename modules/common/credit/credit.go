package credit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/supabase-community/supabase-go"

	"vowshot-server/modules/common/config"
)

type Client struct {
	supabase *supabase.Client
}

// InsufficientError - 잔액 부족 (UI 표시용으로 현재/필요 크레딧을 담음)
type InsufficientError struct {
	Current  int
	Required int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient credits: have %d, need %d", e.Current, e.Required)
}

// NewClient - Credit 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{
		supabase: supabaseClient,
	}
}

// CheckAndDebit - 잔액 확인 후 차감
// 잔액 부족이면 InsufficientError (변경 없음), 성공 시 차감 전 잔액 반환 (환불용)
func (c *Client) CheckAndDebit(ctx context.Context, userID string, amount int) (int, error) {
	current, err := c.Balance(ctx, userID)
	if err != nil {
		return 0, err
	}

	if current < amount {
		return 0, &InsufficientError{Current: current, Required: amount}
	}

	newBalance := current - amount
	log.Printf("💰 Credit balance: %d → %d (-%d) for user %s", current, newBalance, amount, userID)

	if err := c.writeBalance(userID, newBalance); err != nil {
		return 0, fmt.Errorf("failed to deduct credits: %w", err)
	}

	c.recordTransaction(userID, "DEDUCT", -amount, newBalance)

	return current, nil
}

// Refund - 차감 전 잔액으로 무조건 복구
// 베스트에포트 - 실패는 로그만 남김 (호출부에서 재시도하지 않음)
func (c *Client) Refund(ctx context.Context, userID string, preDebitBalance int) error {
	log.Printf("↩️  Refunding user %s to pre-debit balance %d", userID, preDebitBalance)

	if err := c.writeBalance(userID, preDebitBalance); err != nil {
		log.Printf("⚠️  Refund failed for user %s: %v", userID, err)
		return fmt.Errorf("failed to refund credits: %w", err)
	}

	c.recordTransaction(userID, "REFUND", 0, preDebitBalance)

	log.Printf("✅ Credits refunded: user %s back to %d", userID, preDebitBalance)
	return nil
}

// Balance - 현재 크레딧 조회
func (c *Client) Balance(ctx context.Context, userID string) (int, error) {
	var profiles []struct {
		Credits int `json:"credits"`
	}

	data, _, err := c.supabase.From("profiles").
		Select("credits", "", false).
		Eq("id", userID).
		Execute()

	if err != nil {
		return 0, fmt.Errorf("failed to fetch user credits: %w", err)
	}

	if err := json.Unmarshal(data, &profiles); err != nil {
		return 0, fmt.Errorf("failed to parse profile data: %w", err)
	}

	if len(profiles) == 0 {
		return 0, fmt.Errorf("user not found: %s", userID)
	}

	return profiles[0].Credits, nil
}

func (c *Client) writeBalance(userID string, balance int) error {
	_, _, err := c.supabase.From("profiles").
		Update(map[string]interface{}{
			"credits": balance,
		}, "", "").
		Eq("id", userID).
		Execute()
	return err
}

// recordTransaction - credit_transactions 기록 (실패해도 본 흐름은 계속)
func (c *Client) recordTransaction(userID, txType string, amount, balanceAfter int) {
	transactionData := map[string]interface{}{
		"user_id":          userID,
		"transaction_type": txType,
		"amount":           amount,
		"balance_after":    balanceAfter,
		"description":      "Wedding photo generation",
	}

	_, _, err := c.supabase.From("credit_transactions").
		Insert(transactionData, false, "", "", "").
		Execute()

	if err != nil {
		log.Printf("⚠️  Failed to record %s transaction for user %s: %v", txType, userID, err)
	}
}
