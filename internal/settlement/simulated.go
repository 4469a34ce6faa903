package settlement

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Simulated settles operation bundles in-process with deterministic hashes.
// It backs the dev profile and unit tests; latency and failures are
// injectable so tests can drive every branch of the transfer state machine.
type Simulated struct {
	mu       sync.Mutex
	receipts map[string]Receipt
	bundles  map[string]Bundle
	done     map[string]chan struct{}
	deployed map[string]bool

	latency        time.Duration
	rejectNext     bool
	failNext       bool
	holdSettlement bool
}

// NewSimulated constructs a simulated settlement layer that settles
// immediately.
func NewSimulated() *Simulated {
	return &Simulated{
		receipts: make(map[string]Receipt),
		bundles:  make(map[string]Bundle),
		done:     make(map[string]chan struct{}),
		deployed: make(map[string]bool),
	}
}

// SetLatency delays settlement of subsequently submitted bundles.
func (s *Simulated) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// RejectNextSubmission makes the next SubmitOperation fail before anything is
// accepted.
func (s *Simulated) RejectNextSubmission() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectNext = true
}

// FailNextSettlement makes the next submitted operation settle with a failed
// status.
func (s *Simulated) FailNextSettlement() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = true
}

// HoldSettlement keeps submitted operations pending until ReleaseAll is
// called, letting tests observe the submitted-but-not-settled window.
func (s *Simulated) HoldSettlement() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdSettlement = true
}

// ReleaseAll settles every held operation.
func (s *Simulated) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdSettlement = false
	for hash, ch := range s.done {
		select {
		case <-ch:
		default:
			s.finalizeLocked(hash)
		}
	}
}

// SubmitOperation accepts the bundle and schedules its settlement.
func (s *Simulated) SubmitOperation(_ context.Context, bundle Bundle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectNext {
		s.rejectNext = false
		return "", fmt.Errorf("%w: bundler unavailable", ErrSubmission)
	}

	userOpHash := opHash(bundle)
	if _, exists := s.receipts[userOpHash]; exists {
		return userOpHash, nil
	}

	status := StatusSettled
	if s.failNext {
		s.failNext = false
		status = StatusFailed
	}

	s.receipts[userOpHash] = Receipt{UserOpHash: userOpHash, Status: status}
	s.bundles[userOpHash] = bundle
	ch := make(chan struct{})
	s.done[userOpHash] = ch

	if s.holdSettlement {
		return userOpHash, nil
	}

	if s.latency > 0 {
		go func(hash string, delay time.Duration) {
			time.Sleep(delay)
			s.mu.Lock()
			defer s.mu.Unlock()
			s.finalizeLocked(hash)
		}(userOpHash, s.latency)
		return userOpHash, nil
	}

	s.finalizeLocked(userOpHash)
	return userOpHash, nil
}

// WaitForSettlement blocks until the operation is final or ctx ends.
func (s *Simulated) WaitForSettlement(ctx context.Context, userOpHash string) (Receipt, error) {
	s.mu.Lock()
	ch, ok := s.done[userOpHash]
	s.mu.Unlock()
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %s", ErrUnknownOperation, userOpHash)
	}

	select {
	case <-ch:
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receipts[userOpHash], nil
}

// CodeDeployed reports whether an account contract settled at the address.
func (s *Simulated) CodeDeployed(_ context.Context, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deployed[address], nil
}

// finalizeLocked stamps the transaction hash and wakes waiters. Callers hold s.mu.
func (s *Simulated) finalizeLocked(userOpHash string) {
	receipt := s.receipts[userOpHash]
	receipt.TxHash = hexutil.Encode(crypto.Keccak256([]byte(userOpHash), []byte("tx")))
	s.receipts[userOpHash] = receipt

	if bundle := s.bundles[userOpHash]; bundle.DeploySender && receipt.Status == StatusSettled {
		s.deployed[bundle.Sender] = true
	}

	if ch, ok := s.done[userOpHash]; ok {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
}

func opHash(b Bundle) string {
	amount := make([]byte, 8)
	binary.BigEndian.PutUint64(amount, uint64(b.Amount))
	chain := make([]byte, 8)
	binary.BigEndian.PutUint64(chain, uint64(b.ChainID))
	return hexutil.Encode(crypto.Keccak256(
		[]byte(b.Sender), []byte(b.Recipient), amount, chain, []byte(b.Reference),
	))
}
