package settlement

import (
	"context"
	"errors"
)

var (
	// ErrSubmission indicates the settlement layer rejected the operation
	// bundle outright; nothing was submitted.
	ErrSubmission = errors.New("operation submission rejected")

	// ErrUnknownOperation indicates the user operation hash is not known to
	// the settlement layer.
	ErrUnknownOperation = errors.New("unknown user operation")
)

const (
	// StatusSettled marks an operation whose effect is final on-chain.
	StatusSettled = "settled"
	// StatusFailed marks an operation the chain rejected after submission.
	StatusFailed = "failed"
)

// Bundle describes an intended token transfer to be settled on-chain. When
// DeploySender is set the sender's account contract is deployed as part of
// the same operation.
type Bundle struct {
	Sender       string
	Recipient    string
	Amount       int64
	ChainID      int64
	DeploySender bool

	// Reference carries the internal transaction id for tracing.
	Reference string
}

// Receipt reports the final on-chain outcome of a submitted operation.
type Receipt struct {
	UserOpHash string
	TxHash     string
	Status     string
}

// Submitter is the settlement layer consumed by the transfer executor.
// SubmitOperation acknowledges acceptance into the mempool and returns the
// operation hash; WaitForSettlement blocks until the operation is final or
// the context ends. Cancelling the wait never cancels the operation itself.
type Submitter interface {
	SubmitOperation(ctx context.Context, bundle Bundle) (string, error)
	WaitForSettlement(ctx context.Context, userOpHash string) (Receipt, error)
	CodeDeployed(ctx context.Context, address string) (bool, error)
}
