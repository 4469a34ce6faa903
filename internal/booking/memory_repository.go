package booking

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.RWMutex
	bookings map[string]Booking
}

// NewMemoryRepository builds an in-memory booking store for testing and
// local development.
func NewMemoryRepository() Repository {
	return &memoryRepository{bookings: make(map[string]Booking)}
}

func (r *memoryRepository) Create(_ context.Context, b Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[b.ID] = b
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Booking
	for _, b := range r.bookings {
		if b.CustomerID == userID || b.StylistID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) MarkPaid(_ context.Context, id, transactionID string) error {
	return r.setStatus(id, StatusPaid, transactionID)
}

func (r *memoryRepository) MarkCancelled(_ context.Context, id string) error {
	return r.setStatus(id, StatusCancelled, "")
}

func (r *memoryRepository) setStatus(id, status, transactionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status != StatusPending {
		return ErrNotFound
	}
	b.Status = status
	if transactionID != "" {
		b.TransactionID = transactionID
	}
	b.UpdatedAt = time.Now().UTC()
	r.bookings[id] = b
	return nil
}
