package transfer

import "time"

// State is the lifecycle position of a transfer. Once validation passes a
// transfer always goes through StateSubmitted before any terminal state.
type State string

const (
	// StateRequested marks a transfer that has been recorded but not yet
	// validated or submitted.
	StateRequested State = "requested"
	// StateRejected is terminal: validation failed before submission.
	StateRejected State = "rejected"
	// StateSubmitted marks a transfer acknowledged by the settlement layer
	// and awaiting finality. It is not a failure state.
	StateSubmitted State = "submitted"
	// StateSettled is terminal: the transfer is final on-chain.
	StateSettled State = "settled"
	// StateFailed is terminal: the settlement layer rejected or reverted the
	// transfer after validation.
	StateFailed State = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateRejected, StateSettled, StateFailed:
		return true
	default:
		return false
	}
}

// Record is the persisted view of a transfer attempt. It is immutable once a
// terminal state is reached.
type Record struct {
	TransactionID  string
	IdempotencyKey string
	FromWalletID   string
	ToWalletID     string
	FromAddress    string
	ToAddress      string
	Amount         int64
	State          State
	UserOpHash     string
	TxHash         string
	Reason         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Result is the caller-facing outcome of a transfer request. Success means
// the transfer was accepted for settlement, not that it is final: the
// transaction and operation hashes fill in as stages complete.
type Result struct {
	Success       bool
	TransactionID string
	UserOpHash    string
	TxHash        string
	State         State
	Reason        string
}

// Result projects the record into its caller-facing outcome.
func (r Record) Result() Result {
	return Result{
		Success:       r.State == StateSubmitted || r.State == StateSettled,
		TransactionID: r.TransactionID,
		UserOpHash:    r.UserOpHash,
		TxHash:        r.TxHash,
		State:         r.State,
		Reason:        r.Reason,
	}
}
