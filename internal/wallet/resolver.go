package wallet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrWalletCreation indicates the deterministic address derivation failed,
// usually because chain configuration is missing. A wallet is never created
// with a placeholder address.
var ErrWalletCreation = errors.New("wallet creation failed")

// addressDeriver computes the counterfactual smart-account address for an
// owner. The derivation mirrors a CREATE2 factory deployment: the factory
// address, a salt bound to the owner and chain, and the account init code
// hash fully determine the address before anything is deployed.
type addressDeriver struct {
	factory      common.Address
	initCodeHash common.Hash
	chainID      int64
}

func newAddressDeriver(factoryHex, initCodeHashHex string, chainID int64) (*addressDeriver, error) {
	if !common.IsHexAddress(factoryHex) {
		return nil, fmt.Errorf("%w: invalid account factory address %q", ErrWalletCreation, factoryHex)
	}
	if len(initCodeHashHex) == 0 {
		return nil, fmt.Errorf("%w: account init code hash is not configured", ErrWalletCreation)
	}
	hashBytes := common.FromHex(initCodeHashHex)
	if len(hashBytes) != common.HashLength {
		return nil, fmt.Errorf("%w: invalid account init code hash %q", ErrWalletCreation, initCodeHashHex)
	}
	if chainID <= 0 {
		return nil, fmt.Errorf("%w: invalid chain id %d", ErrWalletCreation, chainID)
	}
	return &addressDeriver{
		factory:      common.HexToAddress(factoryHex),
		initCodeHash: common.BytesToHash(hashBytes),
		chainID:      chainID,
	}, nil
}

// derive returns the smart-account address for the owner. The same owner and
// chain always produce the same address.
func (d *addressDeriver) derive(ownerID string) (common.Address, error) {
	if ownerID == "" {
		return common.Address{}, fmt.Errorf("%w: owner id is required", ErrWalletCreation)
	}

	chainBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(chainBytes, uint64(d.chainID))
	salt := crypto.Keccak256Hash([]byte(ownerID), chainBytes)

	return crypto.CreateAddress2(d.factory, [32]byte(salt), d.initCodeHash.Bytes()), nil
}
