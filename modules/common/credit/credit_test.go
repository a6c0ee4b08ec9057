package credit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"vowshot-server/modules/common/config"
)

// fakeLedger - PostgREST 흉내 (profiles / credit_transactions)
type fakeLedger struct {
	mu         sync.Mutex
	balance    int
	patchCalls int
}

func (f *fakeLedger) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
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
		case strings.Contains(r.URL.Path, "/credit_transactions"):
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestClient(t *testing.T, ledger *fakeLedger) *Client {
	t.Helper()

	ts := httptest.NewServer(ledger.handler())
	t.Cleanup(ts.Close)

	t.Setenv("SUPABASE_URL", ts.URL)
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")
	if _, err := config.LoadConfig(); err != nil {
		t.Fatalf("load config: %v", err)
	}

	c := NewClient()
	if c == nil {
		t.Fatalf("failed to build credit client")
	}
	return c
}

func TestDebitThenRefundRestoresBalance(t *testing.T) {
	ledger := &fakeLedger{balance: 20}
	c := newTestClient(t, ledger)
	ctx := context.Background()

	pre, err := c.CheckAndDebit(ctx, "user-1", 15)
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if pre != 20 {
		t.Fatalf("expected pre-debit balance 20, got %d", pre)
	}
	if ledger.balance != 5 {
		t.Fatalf("expected balance 5 after debit, got %d", ledger.balance)
	}

	if err := c.Refund(ctx, "user-1", pre); err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if ledger.balance != 20 {
		t.Fatalf("expected balance restored to 20, got %d", ledger.balance)
	}
}

func TestInsufficientCreditsLeavesBalanceUntouched(t *testing.T) {
	ledger := &fakeLedger{balance: 10}
	c := newTestClient(t, ledger)

	_, err := c.CheckAndDebit(context.Background(), "user-2", 15)

	var insuff *InsufficientError
	if !errors.As(err, &insuff) {
		t.Fatalf("expected InsufficientError, got %v", err)
	}
	if insuff.Current != 10 || insuff.Required != 15 {
		t.Fatalf("expected current=10 required=15, got %+v", insuff)
	}

	if ledger.balance != 10 {
		t.Fatalf("balance must be unchanged, got %d", ledger.balance)
	}
	if ledger.patchCalls != 0 {
		t.Fatalf("no write should happen on insufficient funds, got %d writes", ledger.patchCalls)
	}
}

func TestBalanceReadsCurrentValue(t *testing.T) {
	ledger := &fakeLedger{balance: 42}
	c := newTestClient(t, ledger)

	got, err := c.Balance(context.Background(), "user-3")
	if err != nil {
		t.Fatalf("balance read failed: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}
