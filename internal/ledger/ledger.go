package ledger

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available
	// balance to cover a requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound indicates the referenced ledger account does not exist.
	ErrAccountNotFound = errors.New("account not found")
)

// InflightAccountCode holds value debited from senders while the settlement
// layer confirms the corresponding operation bundle. Settled transfers move
// the value on to the recipient; failed ones move it back.
const InflightAccountCode = "suspense:inflight"

// Ledger is the canonical balance store behind wallet accounts. The Debit
// check is atomic per account: two concurrent debits never both succeed
// against a balance only one of them can cover.
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	Debit(ctx context.Context, code string, amount int64) (int64, error)
	Credit(ctx context.Context, code string, amount int64) (int64, error)
}
