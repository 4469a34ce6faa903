package ledger

import (
	"context"
	"fmt"
	"sync"
)

type inMemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]int64
}

// NewInMemory creates a concurrency-safe in-memory ledger. It backs the dev
// profile and unit tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{balances: make(map[string]int64)}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) Debit(_ context.Context, code string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrAccountNotFound
	}
	if balance < amount {
		return balance, ErrInsufficientFunds
	}

	balance -= amount
	l.balances[code] = balance
	return balance, nil
}

func (l *inMemoryLedger) Credit(_ context.Context, code string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrAccountNotFound
	}

	balance += amount
	l.balances[code] = balance
	return balance, nil
}
