package settlement

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testBundle(ref string) Bundle {
	return Bundle{
		Sender:    "0x1111111111111111111111111111111111111111",
		Recipient: "0x2222222222222222222222222222222222222222",
		Amount:    1_000_000,
		ChainID:   8453,
		Reference: ref,
	}
}

func TestSimulated_SubmitAndSettle(t *testing.T) {
	s := NewSimulated()
	ctx := context.Background()

	hash, err := s.SubmitOperation(ctx, testBundle("tx-1"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if hash == "" {
		t.Fatal("expected a user operation hash")
	}

	receipt, err := s.WaitForSettlement(ctx, hash)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if receipt.Status != StatusSettled {
		t.Fatalf("expected settled, got %s", receipt.Status)
	}
	if receipt.TxHash == "" {
		t.Fatal("settled receipt must carry a transaction hash")
	}
}

func TestSimulated_DeterministicHash(t *testing.T) {
	s := NewSimulated()
	ctx := context.Background()

	first, err := s.SubmitOperation(ctx, testBundle("tx-dup"))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := s.SubmitOperation(ctx, testBundle("tx-dup"))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if first != second {
		t.Fatalf("same bundle produced different hashes: %s vs %s", first, second)
	}
}

func TestSimulated_RejectedSubmission(t *testing.T) {
	s := NewSimulated()
	s.RejectNextSubmission()

	if _, err := s.SubmitOperation(context.Background(), testBundle("tx-2")); !errors.Is(err, ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}

	// The rejection is one-shot.
	if _, err := s.SubmitOperation(context.Background(), testBundle("tx-3")); err != nil {
		t.Fatalf("expected next submit to succeed: %v", err)
	}
}

func TestSimulated_FailedSettlement(t *testing.T) {
	s := NewSimulated()
	s.FailNextSettlement()
	ctx := context.Background()

	hash, err := s.SubmitOperation(ctx, testBundle("tx-4"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	receipt, err := s.WaitForSettlement(ctx, hash)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if receipt.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", receipt.Status)
	}
}

func TestSimulated_HeldSettlementTimesOutLocally(t *testing.T) {
	s := NewSimulated()
	s.HoldSettlement()
	ctx := context.Background()

	hash, err := s.SubmitOperation(ctx, testBundle("tx-5"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := s.WaitForSettlement(waitCtx, hash); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// The operation itself was not cancelled: releasing settles it.
	s.ReleaseAll()
	receipt, err := s.WaitForSettlement(ctx, hash)
	if err != nil {
		t.Fatalf("wait after release: %v", err)
	}
	if receipt.Status != StatusSettled {
		t.Fatalf("expected settled, got %s", receipt.Status)
	}
}

func TestSimulated_DeployOnSettle(t *testing.T) {
	s := NewSimulated()
	ctx := context.Background()

	bundle := testBundle("tx-6")
	bundle.DeploySender = true

	deployed, err := s.CodeDeployed(ctx, bundle.Sender)
	if err != nil || deployed {
		t.Fatalf("expected undeployed sender, got deployed=%v err=%v", deployed, err)
	}

	hash, err := s.SubmitOperation(ctx, bundle)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.WaitForSettlement(ctx, hash); err != nil {
		t.Fatalf("wait: %v", err)
	}

	deployed, err = s.CodeDeployed(ctx, bundle.Sender)
	if err != nil || !deployed {
		t.Fatalf("expected deployed sender after settlement, got deployed=%v err=%v", deployed, err)
	}
}

func TestSimulated_UnknownOperation(t *testing.T) {
	s := NewSimulated()
	if _, err := s.WaitForSettlement(context.Background(), "0xdead"); !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
}
