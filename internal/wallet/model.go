package wallet

import "time"

// Wallet is a smart-account wallet owned by a user. The address is derived
// deterministically from the owner and chain, so it exists before the account
// contract is deployed on-chain.
type Wallet struct {
	ID          string
	OwnerID     string
	Address     string
	ChainID     int64
	IsDeployed  bool
	AccountCode string
	Currency    string
	CreatedAt   time.Time
}

// Identity is the caller-facing view of a wallet's on-chain identity.
type Identity struct {
	Address    string
	IsDeployed bool
	ChainID    int64
}

// Identity projects the wallet's chain identity.
func (w Wallet) Identity() Identity {
	return Identity{Address: w.Address, IsDeployed: w.IsDeployed, ChainID: w.ChainID}
}

// BalanceSnapshot reports a wallet balance at a point in time. FiatValue is
// nil when the pricing source could not supply a rate; the raw amount is
// still authoritative.
type BalanceSnapshot struct {
	WalletID        string
	RawAmount       int64
	FormattedAmount string
	FiatValue       *float64
	Currency        string
	AsOf            time.Time
}
