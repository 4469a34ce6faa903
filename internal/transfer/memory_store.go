package transfer

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	byKey   map[string]string
}

// NewMemoryStore constructs an in-memory transfer store for tests and the
// dev profile.
func NewMemoryStore() Store {
	return &memoryStore{
		records: make(map[string]Record),
		byKey:   make(map[string]string),
	}
}

func (s *memoryStore) Create(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.IdempotencyKey != "" {
		if _, exists := s.byKey[rec.IdempotencyKey]; exists {
			return ErrDuplicateKey
		}
		s.byKey[rec.IdempotencyKey] = rec.TransactionID
	}
	rec.UpdatedAt = rec.CreatedAt
	s.records[rec.TransactionID] = rec
	return nil
}

func (s *memoryStore) Get(_ context.Context, transactionID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[transactionID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *memoryStore) GetByIdempotencyKey(_ context.Context, key string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txID, ok := s.byKey[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return s.records[txID], nil
}

func (s *memoryStore) MarkRejected(_ context.Context, transactionID, reason string) error {
	return s.mutate(transactionID, func(rec *Record) {
		rec.State = StateRejected
		rec.Reason = reason
	})
}

func (s *memoryStore) MarkSubmitted(_ context.Context, transactionID, userOpHash string) error {
	return s.mutate(transactionID, func(rec *Record) {
		rec.State = StateSubmitted
		rec.UserOpHash = userOpHash
	})
}

func (s *memoryStore) MarkSettled(_ context.Context, transactionID, txHash string) error {
	return s.mutate(transactionID, func(rec *Record) {
		rec.State = StateSettled
		rec.TxHash = txHash
	})
}

func (s *memoryStore) MarkFailed(_ context.Context, transactionID, reason string) error {
	return s.mutate(transactionID, func(rec *Record) {
		rec.State = StateFailed
		rec.Reason = reason
	})
}

func (s *memoryStore) mutate(transactionID string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[transactionID]
	if !ok {
		return ErrNotFound
	}
	fn(&rec)
	rec.UpdatedAt = time.Now().UTC()
	s.records[transactionID] = rec
	return nil
}
