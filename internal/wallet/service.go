package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/config"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/ledger"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/money"
	"github.com/LegoGigaBrain/vlossom-protocol-sub013/internal/pricing"
)

// ErrBalanceUnavailable indicates the canonical ledger could not be read.
// Callers may retry or fall back to cached values; this service never does.
var ErrBalanceUnavailable = errors.New("balance unavailable")

// Service resolves wallet identities and reads balances.
type Service struct {
	repo     Repository
	ledger   ledger.Ledger
	rates    pricing.Source
	deriver  *addressDeriver
	symbol   string
	decimals int32
	ratePair string
}

// NewService builds a wallet service. It fails if the chain configuration
// needed for address derivation is missing or malformed.
func NewService(cfg config.Config, repo Repository, ledgerBackend ledger.Ledger, rates pricing.Source) (*Service, error) {
	deriver, err := newAddressDeriver(cfg.FactoryAddress, cfg.AccountInitCodeHash, cfg.ChainID)
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:     repo,
		ledger:   ledgerBackend,
		rates:    rates,
		deriver:  deriver,
		symbol:   cfg.TokenSymbol,
		decimals: cfg.TokenDecimals,
		ratePair: cfg.RatePair(),
	}, nil
}

// Resolve returns the wallet for the owner, creating it on first use. The
// derived address is deterministic, so resolving twice always yields the same
// identity; the account contract stays undeployed until the first outgoing
// transfer.
func (s *Service) Resolve(ctx context.Context, ownerID string) (Wallet, error) {
	if w, err := s.repo.GetByOwner(ctx, ownerID); err == nil {
		return w, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Wallet{}, err
	}

	address, err := s.deriver.derive(ownerID)
	if err != nil {
		return Wallet{}, err
	}

	accountCode := fmt.Sprintf("wallet:%s", strings.ToLower(address.Hex()))
	if err := s.ledger.EnsureAccount(ctx, accountCode); err != nil {
		return Wallet{}, fmt.Errorf("provision ledger account: %w", err)
	}

	w := Wallet{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Address:     address.Hex(),
		ChainID:     s.deriver.chainID,
		IsDeployed:  false,
		AccountCode: accountCode,
		Currency:    s.symbol,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, w); err != nil {
		// Lost a create race: the winner stored the same derived address.
		if existing, getErr := s.repo.GetByOwner(ctx, ownerID); getErr == nil {
			return existing, nil
		}
		return Wallet{}, err
	}

	return w, nil
}

// Get retrieves wallet metadata by wallet id.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.repo.Get(ctx, id)
}

// GetByOwner retrieves the wallet owned by the given user.
func (s *Service) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	return s.repo.GetByOwner(ctx, ownerID)
}

// MarkDeployed records that the wallet's account contract settled on-chain.
func (s *Service) MarkDeployed(ctx context.Context, id string) error {
	return s.repo.SetDeployed(ctx, id)
}

// Balance reads the wallet balance from the ledger and derives the formatted
// and fiat views from the single raw amount it read. A pricing failure only
// omits the fiat value.
func (s *Service) Balance(ctx context.Context, id string) (BalanceSnapshot, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	return s.snapshot(ctx, w)
}

// BalanceByOwner reads the balance of the wallet owned by the given user.
func (s *Service) BalanceByOwner(ctx context.Context, ownerID string) (BalanceSnapshot, error) {
	w, err := s.repo.GetByOwner(ctx, ownerID)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	return s.snapshot(ctx, w)
}

func (s *Service) snapshot(ctx context.Context, w Wallet) (BalanceSnapshot, error) {
	raw, err := s.ledger.Balance(ctx, w.AccountCode)
	if err != nil {
		return BalanceSnapshot{}, fmt.Errorf("%w: %v", ErrBalanceUnavailable, err)
	}

	snap := BalanceSnapshot{
		WalletID:        w.ID,
		RawAmount:       raw,
		FormattedAmount: money.FormatUnits(raw, s.decimals),
		Currency:        w.Currency,
		AsOf:            time.Now().UTC(),
	}

	if rate, rateErr := s.rates.Rate(ctx, s.ratePair); rateErr == nil {
		fiat := money.FiatValue(raw, s.decimals, rate)
		snap.FiatValue = &fiat
	}

	return snap, nil
}
