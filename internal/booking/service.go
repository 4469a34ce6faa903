package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/identity"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/notification"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/transfer"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/wallet"
)

var (
	// ErrNotPending is returned when paying or cancelling a booking that
	// already reached a terminal status.
	ErrNotPending = errors.New("booking is not pending")
	// ErrNotParticipant is returned when the caller is neither the customer
	// nor the stylist of the booking.
	ErrNotParticipant = errors.New("caller is not part of this booking")
)

// Service coordinates bookings and their payment through wallet transfers.
type Service struct {
	repo      Repository
	users     identity.Repository
	wallets   *wallet.Service
	transfers *transfer.Executor
	notifier  notification.Notifier
}

// NewService wires the booking service.
func NewService(repo Repository, users identity.Repository, wallets *wallet.Service, transfers *transfer.Executor, notifier notification.Notifier) (*Service, error) {
	if wallets == nil || transfers == nil {
		return nil, fmt.Errorf("wallet service and transfer executor are required")
	}
	return &Service{repo: repo, users: users, wallets: wallets, transfers: transfers, notifier: notifier}, nil
}

// CreateInput captures the data for a new booking.
type CreateInput struct {
	CustomerID  string
	StylistID   string
	ServiceName string
	Amount      int64
	ScheduledAt time.Time
}

// Create records a pending booking after checking the stylist exists.
func (s *Service) Create(ctx context.Context, input CreateInput) (Booking, error) {
	if input.Amount <= 0 {
		return Booking{}, fmt.Errorf("amount must be positive")
	}
	if input.CustomerID == input.StylistID {
		return Booking{}, fmt.Errorf("customer and stylist must differ")
	}
	stylist, err := s.users.FindByID(ctx, input.StylistID)
	if err != nil {
		return Booking{}, fmt.Errorf("stylist lookup: %w", err)
	}
	if stylist.Role != identity.RoleStylist {
		return Booking{}, fmt.Errorf("user %s is not a stylist", input.StylistID)
	}

	now := time.Now().UTC()
	b := Booking{
		ID:          uuid.NewString(),
		CustomerID:  input.CustomerID,
		StylistID:   input.StylistID,
		ServiceName: input.ServiceName,
		Amount:      input.Amount,
		Status:      StatusPending,
		ScheduledAt: input.ScheduledAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return Booking{}, err
	}
	return b, nil
}

// Pay settles a pending booking by transferring the amount from the
// customer's wallet to the stylist's wallet. The transfer's idempotency key
// is derived from the booking id, so retried payments never double-charge.
func (s *Service) Pay(ctx context.Context, bookingID, customerID string) (Booking, transfer.Result, error) {
	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return Booking{}, transfer.Result{}, err
	}
	if b.CustomerID != customerID {
		return b, transfer.Result{}, ErrNotParticipant
	}
	if b.Status != StatusPending {
		return b, transfer.Result{}, ErrNotPending
	}

	// Resolve provisions the wallet if this is either party's first
	// interaction with money.
	from, err := s.wallets.Resolve(ctx, b.CustomerID)
	if err != nil {
		return b, transfer.Result{}, err
	}
	to, err := s.wallets.Resolve(ctx, b.StylistID)
	if err != nil {
		return b, transfer.Result{}, err
	}

	result, err := s.transfers.Execute(ctx, transfer.Input{
		FromWalletID:    from.ID,
		ToWalletID:      to.ID,
		Amount:          b.Amount,
		IdempotencyKey:  "booking:" + b.ID,
		RequestorUserID: customerID,
	})
	if err != nil {
		return b, result, err
	}

	if err := s.repo.MarkPaid(ctx, b.ID, result.TransactionID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return b, result, err
		}
		// Already marked by a concurrent retry of the same booking.
	}
	b, err = s.repo.Get(ctx, b.ID)
	if err != nil {
		return Booking{}, result, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindBookingPaid,
			Destination: b.StylistID,
			Body:        fmt.Sprintf("Booking %s for %s was paid", b.ID, b.ServiceName),
		})
	}
	return b, result, nil
}

// Cancel voids a pending booking. Either party can cancel.
func (s *Service) Cancel(ctx context.Context, bookingID, userID string) (Booking, error) {
	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if b.CustomerID != userID && b.StylistID != userID {
		return Booking{}, ErrNotParticipant
	}
	if b.Status != StatusPending {
		return Booking{}, ErrNotPending
	}
	if err := s.repo.MarkCancelled(ctx, b.ID); err != nil {
		return Booking{}, err
	}
	return s.repo.Get(ctx, b.ID)
}

// Get fetches a booking visible to the given user.
func (s *Service) Get(ctx context.Context, bookingID, userID string) (Booking, error) {
	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if b.CustomerID != userID && b.StylistID != userID {
		return Booking{}, ErrNotParticipant
	}
	return b, nil
}

// ListByUser returns the user's bookings on either side of the appointment.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Booking, error) {
	return s.repo.ListByUser(ctx, userID)
}
