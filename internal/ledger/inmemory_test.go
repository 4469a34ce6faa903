package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestInMemoryLedger_DebitCredit(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	if err := l.EnsureAccount(ctx, "wallet:a"); err != nil {
		t.Fatalf("ensure account a: %v", err)
	}
	if err := l.EnsureAccount(ctx, "wallet:b"); err != nil {
		t.Fatalf("ensure account b: %v", err)
	}
	SeedBalance(l, "wallet:a", 10_000)

	balance, err := l.Debit(ctx, "wallet:a", 1_500)
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if balance != 8_500 {
		t.Fatalf("expected balance 8500, got %d", balance)
	}

	balance, err = l.Credit(ctx, "wallet:b", 1_500)
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if balance != 1_500 {
		t.Fatalf("expected balance 1500, got %d", balance)
	}

	total := mustBalance(t, l, "wallet:a") + mustBalance(t, l, "wallet:b")
	if total != 10_000 {
		t.Fatalf("ledger not balanced, total=%d", total)
	}
}

func TestInMemoryLedger_InsufficientFunds(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a")
	SeedBalance(l, "wallet:a", 500)

	if _, err := l.Debit(ctx, "wallet:a", 1_000); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if mustBalance(t, l, "wallet:a") != 500 {
		t.Fatal("failed debit must not change the balance")
	}
}

func TestInMemoryLedger_UnknownAccount(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	if _, err := l.Balance(ctx, "wallet:missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
	if _, err := l.Debit(ctx, "wallet:missing", 100); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
	if _, err := l.Credit(ctx, "wallet:missing", 100); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

// Concurrent debits against a balance that cannot cover them all: exactly the
// affordable subset succeeds and the balance never goes negative.
func TestInMemoryLedger_ConcurrentDebits(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	l.EnsureAccount(ctx, "wallet:a")
	SeedBalance(l, "wallet:a", 3_000)

	const workers = 10
	const amount = int64(1_000)

	var succeeded atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Debit(ctx, "wallet:a", amount); err == nil {
				succeeded.Add(1)
			} else if !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("unexpected debit error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != 3 {
		t.Fatalf("expected exactly 3 debits to succeed, got %d", succeeded.Load())
	}
	if got := mustBalance(t, l, "wallet:a"); got != 0 {
		t.Fatalf("expected zero balance, got %d", got)
	}
}

func mustBalance(t *testing.T, l Ledger, code string) int64 {
	t.Helper()
	balance, err := l.Balance(context.Background(), code)
	if err != nil {
		t.Fatalf("balance %s: %v", code, err)
	}
	return balance
}
