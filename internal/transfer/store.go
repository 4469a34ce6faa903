package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no transfer exists for the identifier.
	ErrNotFound = errors.New("transfer not found")

	// ErrDuplicateKey indicates the idempotency key is already bound to
	// another transfer record.
	ErrDuplicateKey = errors.New("idempotency key already used")
)

// Store persists transfer records. Create must reject a reused idempotency
// key atomically so concurrent retries cannot double-spend.
type Store interface {
	Create(ctx context.Context, rec Record) error
	Get(ctx context.Context, transactionID string) (Record, error)
	GetByIdempotencyKey(ctx context.Context, key string) (Record, error)
	MarkRejected(ctx context.Context, transactionID, reason string) error
	MarkSubmitted(ctx context.Context, transactionID, userOpHash string) error
	MarkSettled(ctx context.Context, transactionID, txHash string) error
	MarkFailed(ctx context.Context, transactionID, reason string) error
}

// PostgresStore stores transfer records in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a transfer store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a fresh transfer record.
func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	txID, err := uuid.Parse(rec.TransactionID)
	if err != nil {
		return err
	}
	var key *string
	if rec.IdempotencyKey != "" {
		key = &rec.IdempotencyKey
	}
	_, err = s.db.Exec(ctx, `INSERT INTO transfers
        (transaction_id, idempotency_key, from_wallet_id, to_wallet_id, from_address, to_address, amount, state, reason, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		txID, key, rec.FromWalletID, rec.ToWalletID, rec.FromAddress, rec.ToAddress,
		rec.Amount, string(rec.State), rec.Reason, rec.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

// Get fetches a transfer by its transaction id.
func (s *PostgresStore) Get(ctx context.Context, transactionID string) (Record, error) {
	txID, err := uuid.Parse(transactionID)
	if err != nil {
		return Record{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, selectTransfer+` WHERE transaction_id = $1`, txID)
	return scanRecord(row)
}

// GetByIdempotencyKey fetches the transfer bound to the idempotency key.
func (s *PostgresStore) GetByIdempotencyKey(ctx context.Context, key string) (Record, error) {
	row := s.db.QueryRow(ctx, selectTransfer+` WHERE idempotency_key = $1`, key)
	return scanRecord(row)
}

// MarkRejected moves the transfer to the terminal rejected state.
func (s *PostgresStore) MarkRejected(ctx context.Context, transactionID, reason string) error {
	return s.update(ctx, transactionID,
		`UPDATE transfers SET state = $2, reason = $3, updated_at = NOW() WHERE transaction_id = $1`,
		string(StateRejected), reason)
}

// MarkSubmitted records the settlement layer acknowledgment.
func (s *PostgresStore) MarkSubmitted(ctx context.Context, transactionID, userOpHash string) error {
	return s.update(ctx, transactionID,
		`UPDATE transfers SET state = $2, user_op_hash = $3, updated_at = NOW() WHERE transaction_id = $1`,
		string(StateSubmitted), userOpHash)
}

// MarkSettled records on-chain finality.
func (s *PostgresStore) MarkSettled(ctx context.Context, transactionID, txHash string) error {
	return s.update(ctx, transactionID,
		`UPDATE transfers SET state = $2, tx_hash = $3, updated_at = NOW() WHERE transaction_id = $1`,
		string(StateSettled), txHash)
}

// MarkFailed moves the transfer to the terminal failed state.
func (s *PostgresStore) MarkFailed(ctx context.Context, transactionID, reason string) error {
	return s.update(ctx, transactionID,
		`UPDATE transfers SET state = $2, reason = $3, updated_at = NOW() WHERE transaction_id = $1`,
		string(StateFailed), reason)
}

func (s *PostgresStore) update(ctx context.Context, transactionID, query string, args ...any) error {
	txID, err := uuid.Parse(transactionID)
	if err != nil {
		return ErrNotFound
	}
	queryArgs := append([]any{txID}, args...)
	cmd, err := s.db.Exec(ctx, query, queryArgs...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const selectTransfer = `SELECT transaction_id, idempotency_key, from_wallet_id, to_wallet_id,
    from_address, to_address, amount, state, COALESCE(user_op_hash, ''), COALESCE(tx_hash, ''),
    reason, created_at, updated_at FROM transfers`

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec       Record
		txID      uuid.UUID
		key       *string
		state     string
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&txID, &key, &rec.FromWalletID, &rec.ToWalletID, &rec.FromAddress,
		&rec.ToAddress, &rec.Amount, &state, &rec.UserOpHash, &rec.TxHash,
		&rec.Reason, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.TransactionID = txID.String()
	if key != nil {
		rec.IdempotencyKey = *key
	}
	rec.State = State(state)
	rec.CreatedAt = createdAt.UTC()
	rec.UpdatedAt = updatedAt.UTC()
	return rec, nil
}
