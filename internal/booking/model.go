package booking

import "time"

// Status values for a booking.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Booking represents a customer's appointment with a stylist. Amount is in
// the token's smallest unit and is owed to the stylist once paid.
type Booking struct {
	ID            string
	CustomerID    string
	StylistID     string
	ServiceName   string
	Amount        int64
	Status        string
	TransactionID string
	ScheduledAt   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
