package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists account balances in PostgreSQL. Debits rely on a
// conditional row update, so the sufficient-funds check and the balance
// mutation are a single atomic statement serialized by the row lock.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account exists for the provided code.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, code string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (id, code, balance) VALUES ($1, $2, 0)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// Balance returns the current balance for the specified account code.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (int64, error) {
	var balance int64
	err := l.db.QueryRow(ctx, `SELECT balance FROM accounts WHERE code = $1`, code).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
		}
		return 0, err
	}
	return balance, nil
}

// Debit atomically checks and subtracts from the account balance.
func (l *PostgresLedger) Debit(ctx context.Context, code string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}

	var balance int64
	err := l.db.QueryRow(ctx, `UPDATE accounts SET balance = balance - $2
        WHERE code = $1 AND balance >= $2
        RETURNING balance`, code, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// No row updated: distinguish a missing account from a short balance.
	current, balErr := l.Balance(ctx, code)
	if balErr != nil {
		return 0, balErr
	}
	return current, ErrInsufficientFunds
}

// Credit adds to the account balance.
func (l *PostgresLedger) Credit(ctx context.Context, code string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}

	var balance int64
	err := l.db.QueryRow(ctx, `UPDATE accounts SET balance = balance + $2
        WHERE code = $1
        RETURNING balance`, code, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
		}
		return 0, err
	}
	return balance, nil
}
