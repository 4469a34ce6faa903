package settlement

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const defaultPollInterval = 2 * time.Second

// erc20TransferSelector is the 4-byte selector of transfer(address,uint256).
var erc20TransferSelector = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

// BundlerClient submits ERC-4337 user operations to a bundler RPC endpoint
// and polls it for settlement receipts.
type BundlerClient struct {
	rpc          *rpc.Client
	eth          *ethclient.Client
	entryPoint   common.Address
	token        common.Address
	pollInterval time.Duration
}

// DialBundler connects to the bundler endpoint.
func DialBundler(ctx context.Context, url, entryPoint, token string) (*BundlerClient, error) {
	if !common.IsHexAddress(entryPoint) {
		return nil, fmt.Errorf("invalid entry point address %q", entryPoint)
	}
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("invalid token address %q", token)
	}

	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial bundler: %w", err)
	}

	return &BundlerClient{
		rpc:          client,
		eth:          ethclient.NewClient(client),
		entryPoint:   common.HexToAddress(entryPoint),
		token:        common.HexToAddress(token),
		pollInterval: defaultPollInterval,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *BundlerClient) Close() {
	c.rpc.Close()
}

type userOperation struct {
	Sender   string `json:"sender"`
	Nonce    string `json:"nonce"`
	InitCode string `json:"initCode"`
	CallData string `json:"callData"`
}

type userOperationReceipt struct {
	UserOpHash string `json:"userOpHash"`
	Success    bool   `json:"success"`
	Receipt    struct {
		TransactionHash string `json:"transactionHash"`
	} `json:"receipt"`
}

// SubmitOperation encodes the transfer as a user operation and sends it to
// the bundler. The returned hash acknowledges acceptance, not settlement.
func (c *BundlerClient) SubmitOperation(ctx context.Context, bundle Bundle) (string, error) {
	op := userOperation{
		Sender:   common.HexToAddress(bundle.Sender).Hex(),
		Nonce:    hexutil.Encode([]byte(bundle.Reference)),
		InitCode: "0x",
		CallData: hexutil.Encode(transferCallData(common.HexToAddress(bundle.Recipient), bundle.Amount)),
	}
	if bundle.DeploySender {
		// A non-empty init code makes the entry point deploy the account
		// before executing the call.
		op.InitCode = hexutil.Encode(c.entryPoint.Bytes())
	}

	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendUserOperation", op, c.entryPoint.Hex()); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	return hash.Hex(), nil
}

// WaitForSettlement polls the bundler until the operation has an on-chain
// receipt or ctx ends.
func (c *BundlerClient) WaitForSettlement(ctx context.Context, userOpHash string) (Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var receipt *userOperationReceipt
		if err := c.rpc.CallContext(ctx, &receipt, "eth_getUserOperationReceipt", userOpHash); err != nil {
			return Receipt{}, err
		}
		if receipt != nil {
			status := StatusFailed
			if receipt.Success {
				status = StatusSettled
			}
			return Receipt{
				UserOpHash: userOpHash,
				TxHash:     receipt.Receipt.TransactionHash,
				Status:     status,
			}, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		}
	}
}

// CodeDeployed probes the chain for account contract code at the address.
func (c *BundlerClient) CodeDeployed(ctx context.Context, address string) (bool, error) {
	code, err := c.eth.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

// transferCallData ABI-encodes an ERC-20 transfer call.
func transferCallData(recipient common.Address, amount int64) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, erc20TransferSelector...)
	data = append(data, common.LeftPadBytes(recipient.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(big.NewInt(amount).Bytes(), 32)...)
	return data
}
