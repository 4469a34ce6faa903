package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/ledger"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/notification"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/settlement"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/wallet"
)

var (
	// ErrInvalidAmount rejects non-positive transfer amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrSameWallet rejects transfers from a wallet to itself.
	ErrSameWallet = errors.New("sender and recipient must differ")

	// ErrNotOwner indicates the caller does not own the source wallet.
	ErrNotOwner = errors.New("not owner of source wallet")

	// ErrSettlementTimeout indicates the local wait for finality ran out.
	// The transfer stays submitted and remains queryable by transaction id.
	ErrSettlementTimeout = errors.New("settlement wait timed out")
)

const awaitPollInterval = 25 * time.Millisecond

// Executor moves value between wallets. The validate-then-debit step is
// serialized per wallet by the ledger, so concurrent transfers can never
// overdraw a balance only one of them can cover. Submitted value sits in the
// inflight suspense account until the settlement layer reports finality.
type Executor struct {
	ledger   ledger.Ledger
	wallets  *wallet.Service
	store    Store
	settler  settlement.Submitter
	notifier notification.Notifier
	logger   *slog.Logger

	settleTimeout time.Duration
	watches       sync.WaitGroup
}

// NewExecutor wires a transfer executor and provisions the inflight suspense
// account.
func NewExecutor(ctx context.Context, ledgerBackend ledger.Ledger, wallets *wallet.Service, store Store,
	settler settlement.Submitter, notifier notification.Notifier, logger *slog.Logger, settleTimeout time.Duration) (*Executor, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet service is required")
	}
	if err := ledgerBackend.EnsureAccount(ctx, ledger.InflightAccountCode); err != nil {
		return nil, err
	}
	if settleTimeout <= 0 {
		settleTimeout = 10 * time.Minute
	}
	return &Executor{
		ledger:        ledgerBackend,
		wallets:       wallets,
		store:         store,
		settler:       settler,
		notifier:      notifier,
		logger:        logger,
		settleTimeout: settleTimeout,
	}, nil
}

// Input captures the data needed to move funds between wallets.
type Input struct {
	FromWalletID    string
	ToWalletID      string
	Amount          int64
	IdempotencyKey  string
	RequestorUserID string
}

// Execute runs a transfer through the lifecycle. It returns as soon as the
// settlement layer acknowledges the submission; finality is tracked in the
// background and exposed through Get and Await.
func (e *Executor) Execute(ctx context.Context, input Input) (Result, error) {
	if input.IdempotencyKey != "" {
		if existing, err := e.store.GetByIdempotencyKey(ctx, input.IdempotencyKey); err == nil {
			return existing.Result(), nil
		} else if !errors.Is(err, ErrNotFound) {
			return Result{}, err
		}
	}

	from, err := e.wallets.Get(ctx, input.FromWalletID)
	if err != nil {
		return Result{}, err
	}
	if input.RequestorUserID != "" && from.OwnerID != input.RequestorUserID {
		return Result{}, ErrNotOwner
	}
	to, err := e.wallets.Get(ctx, input.ToWalletID)
	if err != nil {
		return Result{}, err
	}

	rec := Record{
		TransactionID:  uuid.NewString(),
		IdempotencyKey: input.IdempotencyKey,
		FromWalletID:   from.ID,
		ToWalletID:     to.ID,
		FromAddress:    from.Address,
		ToAddress:      to.Address,
		Amount:         input.Amount,
		State:          StateRequested,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.store.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			// Lost a race against a concurrent request with the same key.
			if existing, getErr := e.store.GetByIdempotencyKey(ctx, input.IdempotencyKey); getErr == nil {
				return existing.Result(), nil
			}
		}
		return Result{}, err
	}

	if input.Amount <= 0 {
		return e.reject(ctx, rec, ErrInvalidAmount)
	}
	if from.ID == to.ID {
		return e.reject(ctx, rec, ErrSameWallet)
	}

	// Check-and-debit is atomic in the ledger; the amount moves into the
	// inflight suspense account until the operation settles.
	if _, err := e.ledger.Debit(ctx, from.AccountCode, input.Amount); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return e.reject(ctx, rec, ledger.ErrInsufficientFunds)
		}
		return e.reject(ctx, rec, fmt.Errorf("ledger debit: %w", err))
	}
	if _, err := e.ledger.Credit(ctx, ledger.InflightAccountCode, input.Amount); err != nil {
		e.refund(from.AccountCode, input.Amount)
		return e.reject(ctx, rec, fmt.Errorf("ledger hold: %w", err))
	}

	bundle := settlement.Bundle{
		Sender:       from.Address,
		Recipient:    to.Address,
		Amount:       input.Amount,
		ChainID:      from.ChainID,
		DeploySender: !from.IsDeployed,
		Reference:    rec.TransactionID,
	}

	userOpHash, err := e.settler.SubmitOperation(ctx, bundle)
	if err != nil {
		e.release(from.AccountCode, input.Amount)
		reason := err.Error()
		if markErr := e.store.MarkFailed(context.WithoutCancel(ctx), rec.TransactionID, reason); markErr != nil {
			e.logger.Error("mark transfer failed", "transaction_id", rec.TransactionID, "error", markErr)
		}
		rec.State = StateFailed
		rec.Reason = reason
		return rec.Result(), fmt.Errorf("submit operation: %w", err)
	}

	if err := e.store.MarkSubmitted(ctx, rec.TransactionID, userOpHash); err != nil {
		e.logger.Error("mark transfer submitted", "transaction_id", rec.TransactionID, "error", err)
	}
	rec.State = StateSubmitted
	rec.UserOpHash = userOpHash

	e.watches.Add(1)
	go e.watchSettlement(rec, from, to)

	return rec.Result(), nil
}

// Get returns the current record for a transaction id.
func (e *Executor) Get(ctx context.Context, transactionID string) (Record, error) {
	return e.store.Get(ctx, transactionID)
}

// Await blocks until the transfer reaches a terminal state or ctx ends. On
// timeout the transfer is still in flight: only the caller's wait is
// cancelled, never the submitted operation.
func (e *Executor) Await(ctx context.Context, transactionID string) (Record, error) {
	ticker := time.NewTicker(awaitPollInterval)
	defer ticker.Stop()

	for {
		rec, err := e.store.Get(ctx, transactionID)
		if err != nil {
			return Record{}, err
		}
		if rec.State.Terminal() {
			return rec, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return rec, fmt.Errorf("%w: %s still %s", ErrSettlementTimeout, transactionID, rec.State)
		}
	}
}

// Wait blocks until all background settlement watches finish. Used on
// shutdown and in tests.
func (e *Executor) Wait() {
	e.watches.Wait()
}

// watchSettlement tracks a submitted operation to finality and applies the
// ledger effect. It runs detached from the request context: a submitted
// transfer cannot be cancelled.
func (e *Executor) watchSettlement(rec Record, from, to wallet.Wallet) {
	defer e.watches.Done()

	ctx, cancel := context.WithTimeout(context.Background(), e.settleTimeout)
	defer cancel()

	receipt, err := e.settler.WaitForSettlement(ctx, rec.UserOpHash)
	if err != nil {
		// Not terminal: the transfer stays submitted for later reconciliation.
		e.logger.Warn("settlement watch ended without receipt",
			"transaction_id", rec.TransactionID, "user_op_hash", rec.UserOpHash, "error", err)
		return
	}

	if receipt.Status != settlement.StatusSettled {
		e.release(from.AccountCode, rec.Amount)
		if err := e.store.MarkFailed(ctx, rec.TransactionID, "settlement failed"); err != nil {
			e.logger.Error("mark transfer failed", "transaction_id", rec.TransactionID, "error", err)
		}
		e.notify(ctx, notification.KindTransferFailed, from.OwnerID,
			fmt.Sprintf("Transfer %s failed on-chain and was refunded", rec.TransactionID))
		return
	}

	if _, err := e.ledger.Debit(ctx, ledger.InflightAccountCode, rec.Amount); err != nil {
		e.logger.Error("release inflight hold", "transaction_id", rec.TransactionID, "error", err)
	}
	if _, err := e.ledger.Credit(ctx, to.AccountCode, rec.Amount); err != nil {
		e.logger.Error("credit recipient", "transaction_id", rec.TransactionID, "error", err)
	}
	if err := e.store.MarkSettled(ctx, rec.TransactionID, receipt.TxHash); err != nil {
		e.logger.Error("mark transfer settled", "transaction_id", rec.TransactionID, "error", err)
	}

	// First settled outgoing transfer deploys the sender's account contract.
	if !from.IsDeployed {
		if err := e.wallets.MarkDeployed(ctx, from.ID); err != nil {
			e.logger.Error("mark wallet deployed", "wallet_id", from.ID, "error", err)
		}
	}

	e.notify(ctx, notification.KindTransferSettled, to.OwnerID,
		fmt.Sprintf("You received %d from wallet %s", rec.Amount, from.ID))
}

// reject finalizes a record that failed validation before submission.
func (e *Executor) reject(ctx context.Context, rec Record, cause error) (Result, error) {
	if err := e.store.MarkRejected(context.WithoutCancel(ctx), rec.TransactionID, cause.Error()); err != nil {
		e.logger.Error("mark transfer rejected", "transaction_id", rec.TransactionID, "error", err)
	}
	rec.State = StateRejected
	rec.Reason = cause.Error()
	return rec.Result(), cause
}

// release moves held value from the inflight account back to the sender.
func (e *Executor) release(accountCode string, amount int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := e.ledger.Debit(ctx, ledger.InflightAccountCode, amount); err != nil {
		e.logger.Error("debit inflight account", "account", accountCode, "error", err)
	}
	e.refundCtx(ctx, accountCode, amount)
}

// refund credits the sender back after a failed hold.
func (e *Executor) refund(accountCode string, amount int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.refundCtx(ctx, accountCode, amount)
}

func (e *Executor) refundCtx(ctx context.Context, accountCode string, amount int64) {
	if _, err := e.ledger.Credit(ctx, accountCode, amount); err != nil {
		e.logger.Error("refund sender", "account", accountCode, "error", err)
	}
}

func (e *Executor) notify(ctx context.Context, kind, destination, body string) {
	if e.notifier == nil {
		return
	}
	_ = e.notifier.Send(ctx, notification.Message{Kind: kind, Destination: destination, Body: body})
}
