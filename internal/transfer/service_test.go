package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/config"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/ledger"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/logging"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/pricing"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/settlement"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/wallet"
)

type fixture struct {
	ledger   ledger.Ledger
	wallets  *wallet.Service
	executor *Executor
	settler  *settlement.Simulated
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Config{
		ChainID:             8453,
		TokenSymbol:         "USDC",
		TokenDecimals:       6,
		FiatCurrency:        "USD",
		FactoryAddress:      "0x9406Cc6185a346906296840746125a0E44976454",
		AccountInitCodeHash: "0x6f55d1f1a34cd9f32e25e1b516618051bf02b5296b311ad2ec14e16bf3f15c9c",
		SettleTimeout:       5 * time.Second,
	}

	led := ledger.NewInMemory()
	rates := pricing.NewStaticSource(map[string]decimal.Decimal{"USDC/USD": decimal.NewFromInt(1)})
	wallets, err := wallet.NewService(cfg, wallet.NewMemoryRepository(), led, rates)
	if err != nil {
		t.Fatalf("wallet service: %v", err)
	}

	settler := settlement.NewSimulated()
	executor, err := NewExecutor(context.Background(), led, wallets, NewMemoryStore(),
		settler, nil, logging.Discard(), cfg.SettleTimeout)
	if err != nil {
		t.Fatalf("executor: %v", err)
	}

	return &fixture{ledger: led, wallets: wallets, executor: executor, settler: settler}
}

func (f *fixture) newWallet(t *testing.T, balance int64) wallet.Wallet {
	t.Helper()
	w, err := f.wallets.Resolve(context.Background(), uuid.NewString())
	if err != nil {
		t.Fatalf("resolve wallet: %v", err)
	}
	if balance > 0 {
		ledger.SeedBalance(f.ledger, w.AccountCode, balance)
	}
	return w
}

func TestExecute_SettlesAndCreditsRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.newWallet(t, 10_000_000)
	to := f.newWallet(t, 0)

	res, err := f.executor.Execute(ctx, Input{
		FromWalletID: from.ID, ToWalletID: to.ID, Amount: 1_000_000, IdempotencyKey: "k-1",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success || res.State != StateSubmitted {
		t.Fatalf("expected submitted success, got %+v", res)
	}
	if res.TransactionID == "" || res.UserOpHash == "" {
		t.Fatalf("expected transaction and op hashes, got %+v", res)
	}
	if res.TxHash != "" {
		t.Fatal("tx hash must be absent until settlement")
	}

	rec, err := f.executor.Await(ctx, res.TransactionID)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if rec.State != StateSettled || rec.TxHash == "" {
		t.Fatalf("expected settled with tx hash, got %+v", rec)
	}

	f.executor.Wait()

	fromBal, _ := f.ledger.Balance(ctx, from.AccountCode)
	toBal, _ := f.ledger.Balance(ctx, to.AccountCode)
	if fromBal != 9_000_000 || toBal != 1_000_000 {
		t.Fatalf("unexpected balances after settlement: from=%d to=%d", fromBal, toBal)
	}
}

func TestExecute_InsufficientFundsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.newWallet(t, 10_000_000)
	to := f.newWallet(t, 0)

	res, err := f.executor.Execute(ctx, Input{
		FromWalletID: from.ID, ToWalletID: to.ID, Amount: 15_000_000,
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if res.Success || res.State != StateRejected {
		t.Fatalf("expected rejected result, got %+v", res)
	}

	// Rejection is terminal and queryable.
	rec, getErr := f.executor.Get(ctx, res.TransactionID)
	if getErr != nil {
		t.Fatalf("get: %v", getErr)
	}
	if rec.State != StateRejected || rec.UserOpHash != "" {
		t.Fatalf("expected rejected record without op hash, got %+v", rec)
	}

	if bal, _ := f.ledger.Balance(ctx, from.AccountCode); bal != 10_000_000 {
		t.Fatalf("rejected transfer must not move funds, balance=%d", bal)
	}
}

func TestExecute_InvalidAmountRejected(t *testing.T) {
	f := newFixture(t)
	from := f.newWallet(t, 1_000)
	to := f.newWallet(t, 0)

	res, err := f.executor.Execute(context.Background(), Input{
		FromWalletID: from.ID, ToWalletID: to.ID, Amount: 0,
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if res.State != StateRejected {
		t.Fatalf("expected rejected, got %+v", res)
	}
}

func TestExecute_IdempotencyKeyReturnsOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.newWallet(t, 10_000_000)
	to := f.newWallet(t, 0)

	first, err := f.executor.Execute(ctx, Input{
		FromWalletID: from.ID, ToWalletID: to.ID, Amount: 1_000_000, IdempotencyKey: "dup",
	})
	if err != nil {
		t.Fatalf("first execute: %v", err)
	}

	second, err := f.executor.Execute(ctx, Input{
		FromWalletID: from.ID, ToWalletID: to.ID, Amount: 1_000_000, IdempotencyKey: "dup",
	})
	if err != nil {
		t.Fatalf("repeat execute: %v", err)
	}
	if second.TransactionID != first.TransactionID {
		t.Fatalf("idempotent retry created a new transfer: %s vs %s", first.TransactionID, second.TransactionID)
	}

	f.executor.Wait()
	if bal, _ := f.ledger.Balance(ctx, from.AccountCode); bal != 9_000_000 {
		t.Fatalf("retry double-spent: balance=%d", bal)
	}
}

func TestExecute_ConcurrentSameKeySingleTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.newWallet(t, 10_000_000)
	to := f.newWallet(t, 0)

	const attempts = 8
	ids := make(chan string, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.executor.Execute(ctx, Input{
				FromWalletID: from.ID, ToWalletID: to.ID, Amount: 1_000_000, IdempotencyKey: "race",
			})
			if err != nil {
				t.Errorf("execute: %v", err)
				return
			}
			ids <- res.TransactionID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Fatalf("expected a single transaction id, got %d", len(seen))
	}

	f.executor.Wait()
	if bal, _ := f.ledger.Balance(ctx, from.AccountCode); bal != 9_000_000 {
		t.Fatalf("concurrent retries double-spent: balance=%d", bal)
	}
}

// Concurrent transfers whose sum exceeds the balance: only the affordable
// subset is accepted and the wallet never goes negative.
func TestExecute_ConcurrentOverdraftPrevented(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.newWallet(t, 3_000_000)
	to := f.newWallet(t, 0)

	const workers = 10
	var accepted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.executor.Execute(ctx, Input{
				FromWalletID:   from.ID,
				ToWalletID:     to.ID,
				Amount:         1_000_000,
				IdempotencyKey: fmt.Sprintf("overdraft-%d", i),
			})
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, ledger.ErrInsufficientFunds):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	f.executor.Wait()

	if accepted.Load() != 3 {
		t.Fatalf("expected exactly 3 accepted transfers, got %d", accepted.Load())
	}
	fromBal, _ := f.ledger.Balance(ctx, from.AccountCode)
	toBal, _ := f.ledger.Balance(ctx, to.AccountCode)
	if fromBal != 0 || toBal != 3_000_000 {
		t.Fatalf("unexpected balances: from=%d to=%d", fromBal, toBal)
	}
	if fromBal < 0 {
		t.Fatal("balance went negative")
	}
}

func TestExecute_SubmissionFailureRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.newWallet(t, 5_000_000)
	to := f.newWallet(t, 0)

	f.settler.RejectNextSubmission()
	res, err := f.executor.Execute(ctx, Input{
		FromWalletID: from.ID, ToWalletID: to.ID, Amount: 1_000_000,
	})
	if !errors.Is(err, settlement.ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
	if res.Success || res.State != StateFailed {
		t.Fatalf("expected failed result, got %+v", res)
	}

	if bal, _ := f.ledger.Balance(ctx, from.AccountCode); bal != 5_000_000 {
		t.Fatalf("expected full refund, balance=%d", bal)
	}
}

func TestExecute_SettlementFailureRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.newWallet(t, 5_000_000)
	to := f.newWallet(t, 0)

	f.settler.FailNextSettlement()
	res, err := f.executor.Execute(ctx, Input{
		FromWalletID: from.ID, ToWalletID: to.ID, Amount: 1_000_000,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Success {
		t.Fatalf("submission itself should succeed, got %+v", res)
	}

	rec, err := f.executor.Await(ctx, res.TransactionID)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if rec.State != StateFailed {
		t.Fatalf("expected failed, got %s", rec.State)
	}

	f.executor.Wait()
	fromBal, _ := f.ledger.Balance(ctx, from.AccountCode)
	toBal, _ := f.ledger.Balance(ctx, to.AccountCode)
	if fromBal != 5_000_000 || toBal != 0 {
		t.Fatalf("expected refund after failed settlement: from=%d to=%d", fromBal, toBal)
	}
}

func TestAwait_TimeoutLeavesTransferSubmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.newWallet(t, 5_000_000)
	to := f.newWallet(t, 0)

	f.settler.HoldSettlement()
	res, err := f.executor.Execute(ctx, Input{
		FromWalletID: from.ID, ToWalletID: to.ID, Amount: 1_000_000,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
	defer cancel()
	rec, err := f.executor.Await(waitCtx, res.TransactionID)
	if !errors.Is(err, ErrSettlementTimeout) {
		t.Fatalf("expected settlement timeout, got %v", err)
	}
	if rec.State != StateSubmitted {
		t.Fatalf("timed-out transfer must stay submitted, got %s", rec.State)
	}

	// The submitted operation was not cancelled: it still settles.
	f.settler.ReleaseAll()
	rec, err = f.executor.Await(ctx, res.TransactionID)
	if err != nil {
		t.Fatalf("await after release: %v", err)
	}
	if rec.State != StateSettled {
		t.Fatalf("expected settled, got %s", rec.State)
	}
}

func TestExecute_FirstTransferDeploysWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.newWallet(t, 5_000_000)
	to := f.newWallet(t, 0)

	if from.IsDeployed {
		t.Fatal("fresh wallet must start undeployed")
	}

	res, err := f.executor.Execute(ctx, Input{
		FromWalletID: from.ID, ToWalletID: to.ID, Amount: 1_000_000,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := f.executor.Await(ctx, res.TransactionID); err != nil {
		t.Fatalf("await: %v", err)
	}
	f.executor.Wait()

	updated, err := f.wallets.Get(ctx, from.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if !updated.IsDeployed {
		t.Fatal("first settled transfer must deploy the sender's account")
	}
	deployed, err := f.settler.CodeDeployed(ctx, from.Address)
	if err != nil || !deployed {
		t.Fatalf("settlement layer should report deployed code, got %v err=%v", deployed, err)
	}
}

func TestExecute_OwnershipEnforced(t *testing.T) {
	f := newFixture(t)
	from := f.newWallet(t, 5_000_000)
	to := f.newWallet(t, 0)

	_, err := f.executor.Execute(context.Background(), Input{
		FromWalletID:    from.ID,
		ToWalletID:      to.ID,
		Amount:          1_000,
		RequestorUserID: uuid.NewString(),
	})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

// Ledger total is conserved across every lifecycle branch.
func TestExecute_LedgerConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.newWallet(t, 10_000_000)
	to := f.newWallet(t, 0)

	f.settler.FailNextSettlement()
	res1, err := f.executor.Execute(ctx, Input{FromWalletID: from.ID, ToWalletID: to.ID, Amount: 2_000_000})
	if err != nil {
		t.Fatalf("execute 1: %v", err)
	}
	res2, err := f.executor.Execute(ctx, Input{FromWalletID: from.ID, ToWalletID: to.ID, Amount: 3_000_000})
	if err != nil {
		t.Fatalf("execute 2: %v", err)
	}
	if _, err := f.executor.Await(ctx, res1.TransactionID); err != nil {
		t.Fatalf("await 1: %v", err)
	}
	if _, err := f.executor.Await(ctx, res2.TransactionID); err != nil {
		t.Fatalf("await 2: %v", err)
	}
	f.executor.Wait()

	fromBal, _ := f.ledger.Balance(ctx, from.AccountCode)
	toBal, _ := f.ledger.Balance(ctx, to.AccountCode)
	inflight, _ := f.ledger.Balance(ctx, ledger.InflightAccountCode)
	if fromBal+toBal+inflight != 10_000_000 {
		t.Fatalf("ledger not conserved: from=%d to=%d inflight=%d", fromBal, toBal, inflight)
	}
	if inflight != 0 {
		t.Fatalf("inflight account must drain after terminal states, got %d", inflight)
	}
}
