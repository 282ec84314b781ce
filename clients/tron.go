package clients

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"

	"github.com/openx402/facilitator/types"
	"github.com/openx402/facilitator/wallet"
)

// TRON addresses are 21 bytes: a 0x41 prefix followed by the last 20 bytes
// of the keccak256 of the public key. The canonical form used for all
// comparisons is the lower-case hex of those 21 bytes, no 0x prefix.
const (
	tronAddressPrefix = 0x41
	tronAddressLength = 21

	// Fixed fee ceiling for contract transfers, in sun (100 TRX).
	defaultFeeLimit = 100_000_000

	tronSignedMessagePrefix = "\x19TRON Signed Message:\n"
)

var _ ChainClient = (*TronClient)(nil)

// TronClient is the ChainClient adapter for TRON-family networks. Signature
// math is local; submission and status queries go through the node API.
type TronClient struct {
	network  types.Network
	node     TronNodeAPI
	feeLimit int64
}

// NewTronClient creates a TRON client backed by a full node's HTTP wallet
// API at nodeURL.
func NewTronClient(network types.Network, nodeURL string) (*TronClient, error) {
	if !network.IsTron() && network != types.NetworkTest {
		return nil, &types.FacilitatorError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("network %s is not a TRON network", network),
		}
	}

	return &TronClient{
		network:  network,
		node:     newHTTPTronNode(nodeURL),
		feeLimit: defaultFeeLimit,
	}, nil
}

// NewTronClientWithNode creates a TRON client over an explicit node API.
// Used by tests to substitute a fake node.
func NewTronClientWithNode(network types.Network, node TronNodeAPI) *TronClient {
	return &TronClient{
		network:  network,
		node:     node,
		feeLimit: defaultFeeLimit,
	}
}

func (c *TronClient) Network() types.Network {
	return c.network
}

// NormalizeAddress accepts base58check ("T...") and hex (with or without a
// 0x or 41 prefix) encodings and returns the canonical lower-case 41-hex
// form. Input that is not an address in any accepted encoding is lowercased
// as-is so it compares unequal to every valid address instead of aborting
// the pipeline.
func (c *TronClient) NormalizeAddress(addr string) string {
	s := strings.TrimSpace(addr)

	if decoded, err := decodeBase58Check(s); err == nil {
		return hex.EncodeToString(decoded)
	}

	h := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if raw, err := hex.DecodeString(h); err == nil {
		switch {
		case len(raw) == tronAddressLength && raw[0] == tronAddressPrefix:
			return h
		case len(raw) == tronAddressLength-1:
			return "41" + h
		}
	}

	return strings.ToLower(s)
}

// RecoverSigner recovers the TRON address that produced signature over the
// TIP-191 personal-message digest of message.
func (c *TronClient) RecoverSigner(message, signature string) (string, error) {
	sig, err := decodeSignature(signature)
	if err != nil {
		return "", err
	}

	digest := tronMessageDigest(message)

	pub, err := recoverPubkey(digest, sig)
	if err != nil {
		return "", err
	}

	return tronAddressFromPubkey(pub), nil
}

// VerifySignature checks signature against claimedAddress. Fails closed:
// any recovery error is "not verified".
func (c *TronClient) VerifySignature(message, signature, claimedAddress string) bool {
	recovered, err := c.RecoverSigner(message, signature)
	if err != nil {
		return false
	}
	return recovered == c.NormalizeAddress(claimedAddress)
}

// TransferNative submits a TRX transfer from the facilitator wallet.
func (c *TronClient) TransferNative(ctx context.Context, signer *wallet.Signer, to string, value *big.Int) (string, error) {
	owner := tronAddressFromPubkey(signer.PublicKey())

	tx, err := c.node.CreateTransaction(ctx, owner, c.NormalizeAddress(to), value)
	if err != nil {
		return "", &types.FacilitatorError{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("failed to build native transfer: %v", err),
		}
	}

	return c.signAndBroadcast(ctx, signer, tx)
}

// TransferToken submits a TRC-20 transfer(to, value) invocation against
// tokenAddress, bounded by the fixed fee ceiling.
func (c *TronClient) TransferToken(ctx context.Context, signer *wallet.Signer, tokenAddress, to string, value *big.Int) (string, error) {
	owner := tronAddressFromPubkey(signer.PublicKey())

	parameter, err := packTransferArguments(c.NormalizeAddress(to), value)
	if err != nil {
		return "", err
	}

	tx, err := c.node.TriggerSmartContract(ctx, c.NormalizeAddress(tokenAddress), owner,
		"transfer(address,uint256)", parameter, c.feeLimit)
	if err != nil {
		return "", &types.FacilitatorError{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("failed to build token transfer: %v", err),
		}
	}

	return c.signAndBroadcast(ctx, signer, tx)
}

// TransactionStatus maps the node's transaction info onto the engine's
// status view. Contract transfers carry a receipt result; native transfers
// only ever report Found.
func (c *TronClient) TransactionStatus(ctx context.Context, txID string) (*TransactionStatus, error) {
	info, err := c.node.GetTransactionInfo(ctx, txID)
	if err != nil {
		return nil, &types.FacilitatorError{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("failed to query transaction %s: %v", txID, err),
		}
	}

	if info == nil || info.ID == "" {
		return &TransactionStatus{}, nil
	}

	status := &TransactionStatus{Found: true}
	if info.Receipt.Result != "" {
		status.Executed = true
		status.Success = info.Receipt.Result == "SUCCESS"
		status.Message = info.Receipt.Result
	}
	return status, nil
}

func (c *TronClient) Close() {}

func (c *TronClient) signAndBroadcast(ctx context.Context, signer *wallet.Signer, tx *TronTransaction) (string, error) {
	raw, err := hex.DecodeString(tx.RawDataHex)
	if err != nil {
		return "", &types.FacilitatorError{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("node returned malformed raw transaction: %v", err),
		}
	}

	// The transaction id is sha256(raw_data); the signature covers the id.
	digest := sha256.Sum256(raw)

	sig, err := signer.Sign(digest[:])
	if err != nil {
		return "", &types.FacilitatorError{
			Code:    types.ErrSettlementFailed,
			Message: fmt.Sprintf("failed to sign transaction: %v", err),
		}
	}
	tx.Signature = append(tx.Signature, hex.EncodeToString(sig))

	if err := c.node.BroadcastTransaction(ctx, tx); err != nil {
		return "", &types.FacilitatorError{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("broadcast failed: %v", err),
		}
	}

	return tx.TxID, nil
}

// SignTronMessage produces the hex signature a TRON wallet emits for a
// free-form message. Payload builders and tests sign with it; the
// verification pipeline only ever recovers.
func SignTronMessage(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(tronMessageDigest(message), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// tronMessageDigest hashes a message the way TRON wallets sign free-form
// text: keccak256 of the TIP-191 prefix, the decimal message length, and
// the message bytes.
func tronMessageDigest(message string) []byte {
	prefixed := tronSignedMessagePrefix + strconv.Itoa(len(message)) + message
	return crypto.Keccak256([]byte(prefixed))
}

func tronAddressFromPubkey(pub *ecdsa.PublicKey) string {
	evm := crypto.PubkeyToAddress(*pub)
	return "41" + strings.ToLower(hex.EncodeToString(evm.Bytes()))
}

func decodeSignature(signature string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return nil, fmt.Errorf("bad signature hex: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	return sig, nil
}

// recoverPubkey tolerates both v conventions (0/1 and 27/28), the same way
// wallet libraries emit them.
func recoverPubkey(digest, sig []byte) (*ecdsa.PublicKey, error) {
	attempt := make([]byte, 65)
	copy(attempt, sig)
	if attempt[64] >= 27 {
		attempt[64] -= 27
	}

	pub, err := crypto.SigToPub(digest, attempt)
	if err == nil {
		return pub, nil
	}

	copy(attempt, sig)
	if attempt[64] == 0 || attempt[64] == 1 {
		attempt[64] += 27
	}
	if pub, err2 := crypto.SigToPub(digest, attempt); err2 == nil {
		return pub, nil
	}

	return nil, fmt.Errorf("public key recovery failed: %w", err)
}

// decodeBase58Check decodes a TRON base58check address and validates its
// double-sha256 checksum.
func decodeBase58Check(s string) ([]byte, error) {
	if len(s) == 0 || s[0] != 'T' {
		return nil, errors.New("not a base58check address")
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != tronAddressLength+4 {
		return nil, fmt.Errorf("unexpected decoded length %d", len(raw))
	}

	payload, checksum := raw[:tronAddressLength], raw[tronAddressLength:]
	h1 := sha256.Sum256(payload)
	h2 := sha256.Sum256(h1[:])
	for i := 0; i < 4; i++ {
		if checksum[i] != h2[i] {
			return nil, errors.New("checksum mismatch")
		}
	}
	if payload[0] != tronAddressPrefix {
		return nil, errors.New("bad address prefix")
	}

	return payload, nil
}

// EncodeBase58Check renders a canonical 41-hex TRON address in its base58
// wallet form. Used by tests and payload builders.
func EncodeBase58Check(canonicalHex string) (string, error) {
	raw, err := hex.DecodeString(canonicalHex)
	if err != nil {
		return "", fmt.Errorf("bad address hex: %w", err)
	}
	if len(raw) != tronAddressLength || raw[0] != tronAddressPrefix {
		return "", fmt.Errorf("not a canonical TRON address: %s", canonicalHex)
	}

	h1 := sha256.Sum256(raw)
	h2 := sha256.Sum256(h1[:])
	return base58.Encode(append(raw, h2[:4]...)), nil
}

var transferArguments = abi.Arguments{
	{Type: mustABIType("address")},
	{Type: mustABIType("uint256")},
}

// packTransferArguments ABI-encodes the (to, value) arguments of
// transfer(address,uint256); the node API takes the selector separately.
func packTransferArguments(canonicalTo string, value *big.Int) (string, error) {
	raw, err := hex.DecodeString(canonicalTo)
	if err != nil || len(raw) != tronAddressLength {
		return "", &types.FacilitatorError{
			Code:    types.ErrInvalidPayload,
			Message: fmt.Sprintf("recipient is not a canonical TRON address: %s", canonicalTo),
		}
	}

	packed, err := transferArguments.Pack(common.BytesToAddress(raw[1:]), value)
	if err != nil {
		return "", fmt.Errorf("failed to pack transfer arguments: %w", err)
	}
	return hex.EncodeToString(packed), nil
}

func mustABIType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}
