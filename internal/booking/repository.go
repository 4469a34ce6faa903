package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no booking matches the lookup.
var ErrNotFound = errors.New("booking not found")

// Repository persists bookings.
type Repository interface {
	Create(ctx context.Context, b Booking) error
	Get(ctx context.Context, id string) (Booking, error)
	ListByUser(ctx context.Context, userID string) ([]Booking, error)
	MarkPaid(ctx context.Context, id, transactionID string) error
	MarkCancelled(ctx context.Context, id string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed booking repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectBooking = `SELECT id, customer_id, stylist_id, service_name, amount, status, transaction_id, scheduled_at, created_at, updated_at FROM bookings`

// Create inserts a new booking.
func (r *PostgresRepository) Create(ctx context.Context, b Booking) error {
	id, err := uuid.Parse(b.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO bookings (id, customer_id, stylist_id, service_name, amount, status, transaction_id, scheduled_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, b.CustomerID, b.StylistID, b.ServiceName, b.Amount, b.Status, b.TransactionID,
		b.ScheduledAt.UTC(), b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	return err
}

// Get fetches a booking by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Booking, error) {
	bookingID, err := uuid.Parse(id)
	if err != nil {
		return Booking{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, selectBooking+` WHERE id = $1`, bookingID)
	return scanBooking(row)
}

// ListByUser returns bookings where the user is either party, most recent
// first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Booking, error) {
	rows, err := r.db.Query(ctx, selectBooking+` WHERE customer_id = $1 OR stylist_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// MarkPaid transitions a pending booking to paid and records the transfer.
func (r *PostgresRepository) MarkPaid(ctx context.Context, id, transactionID string) error {
	return r.setStatus(ctx, id, StatusPaid, transactionID)
}

// MarkCancelled transitions a pending booking to cancelled.
func (r *PostgresRepository) MarkCancelled(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, StatusCancelled, "")
}

func (r *PostgresRepository) setStatus(ctx context.Context, id, status, transactionID string) error {
	bookingID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE bookings SET status = $1, transaction_id = COALESCE(NULLIF($2, ''), transaction_id), updated_at = $3 WHERE id = $4 AND status = $5`,
		status, transactionID, time.Now().UTC(), bookingID, StatusPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBooking(row pgx.Row) (Booking, error) {
	var (
		id                                uuid.UUID
		scheduledAt, createdAt, updatedAt time.Time
		b                                 Booking
	)
	if err := row.Scan(&id, &b.CustomerID, &b.StylistID, &b.ServiceName, &b.Amount, &b.Status, &b.TransactionID, &scheduledAt, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, err
	}
	b.ID = id.String()
	b.ScheduledAt = scheduledAt.UTC()
	b.CreatedAt = createdAt.UTC()
	b.UpdatedAt = updatedAt.UTC()
	return b, nil
}
