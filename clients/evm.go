package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/openx402/facilitator/types"
	"github.com/openx402/facilitator/wallet"
)

const (
	// Fixed gas ceilings; no fee-market estimation is attempted.
	evmNativeGasLimit = 21_000
	evmTokenGasLimit  = 100_000
)

const erc20TransferABI = `
[
  {
    "name": "transfer",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "to", "type": "address" },
      { "name": "value", "type": "uint256" }
    ],
    "outputs": [{ "name": "", "type": "bool" }]
  }
]
`

var _ ChainClient = (*EVMClient)(nil)

// EVMClient is the ChainClient adapter for EVM-family networks, backed by a
// JSON-RPC endpoint through go-ethereum's ethclient.
type EVMClient struct {
	network  types.Network
	client   *ethclient.Client
	tokenABI abi.ABI

	mu      sync.Mutex
	chainID *big.Int
}

func NewEVMClient(network types.Network, rpcURL string) (*EVMClient, error) {
	if !network.IsEVM() {
		return nil, &types.FacilitatorError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("network %s is not an EVM network", network),
		}
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, &types.FacilitatorError{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("failed to connect to EVM RPC: %v", err),
		}
	}

	tokenABI, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		return nil, err
	}

	return &EVMClient{
		network:  network,
		client:   client,
		tokenABI: tokenABI,
	}, nil
}

func (c *EVMClient) Network() types.Network {
	return c.network
}

// NormalizeAddress lowers any valid hex address to canonical 0x-prefixed
// lower-case form. Anything else is lowercased best-effort.
func (c *EVMClient) NormalizeAddress(addr string) string {
	s := strings.TrimSpace(addr)
	if common.IsHexAddress(s) {
		return strings.ToLower(common.HexToAddress(s).Hex())
	}
	return strings.ToLower(s)
}

// RecoverSigner recovers the address that personal-signed message
// (EIP-191 text prefix).
func (c *EVMClient) RecoverSigner(message, signature string) (string, error) {
	sig, err := decodeSignature(signature)
	if err != nil {
		return "", err
	}

	pub, err := recoverPubkey(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", err
	}

	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}

func (c *EVMClient) VerifySignature(message, signature, claimedAddress string) bool {
	recovered, err := c.RecoverSigner(message, signature)
	if err != nil {
		return false
	}
	return recovered == c.NormalizeAddress(claimedAddress)
}

func (c *EVMClient) TransferNative(ctx context.Context, signer *wallet.Signer, to string, value *big.Int) (string, error) {
	toAddr := common.HexToAddress(to)
	return c.submit(ctx, signer, &toAddr, value, evmNativeGasLimit, nil)
}

func (c *EVMClient) TransferToken(ctx context.Context, signer *wallet.Signer, tokenAddress, to string, value *big.Int) (string, error) {
	data, err := c.tokenABI.Pack("transfer", common.HexToAddress(to), value)
	if err != nil {
		return "", fmt.Errorf("failed to pack transfer call: %w", err)
	}

	contract := common.HexToAddress(tokenAddress)
	return c.submit(ctx, signer, &contract, big.NewInt(0), evmTokenGasLimit, data)
}

func (c *EVMClient) TransactionStatus(ctx context.Context, txID string) (*TransactionStatus, error) {
	hash := common.HexToHash(txID)

	receipt, err := c.client.TransactionReceipt(ctx, hash)
	if err == nil {
		return &TransactionStatus{
			Found:    true,
			Executed: true,
			Success:  receipt.Status == ethtypes.ReceiptStatusSuccessful,
			Message:  fmt.Sprintf("status=%d", receipt.Status),
		}, nil
	}
	if !errors.Is(err, ethereum.NotFound) {
		return nil, &types.FacilitatorError{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("failed to query transaction %s: %v", txID, err),
		}
	}

	// No receipt yet; the transaction may still be in the mempool.
	if _, pending, err := c.client.TransactionByHash(ctx, hash); err == nil {
		return &TransactionStatus{Found: !pending}, nil
	}

	return &TransactionStatus{}, nil
}

func (c *EVMClient) Close() {
	c.client.Close()
}

func (c *EVMClient) submit(ctx context.Context, signer *wallet.Signer, to *common.Address, value *big.Int, gasLimit uint64, data []byte) (string, error) {
	chainID, err := c.getChainID(ctx)
	if err != nil {
		return "", err
	}

	nonce, err := c.client.PendingNonceAt(ctx, signer.Address())
	if err != nil {
		return "", &types.FacilitatorError{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("failed to fetch nonce: %v", err),
		}
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", &types.FacilitatorError{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("failed to fetch gas price: %v", err),
		}
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := signer.SignEthereumTx(tx, chainID)
	if err != nil {
		return "", &types.FacilitatorError{
			Code:    types.ErrSettlementFailed,
			Message: fmt.Sprintf("failed to sign transaction: %v", err),
		}
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return "", &types.FacilitatorError{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("broadcast failed: %v", err),
		}
	}

	return signed.Hash().Hex(), nil
}

func (c *EVMClient) getChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chainID != nil {
		return c.chainID, nil
	}

	chainID, err := c.client.ChainID(ctx)
	if err != nil {
		return nil, &types.FacilitatorError{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("failed to fetch chain id: %v", err),
		}
	}
	c.chainID = chainID
	return chainID, nil
}
