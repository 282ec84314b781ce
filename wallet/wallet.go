// Package wallet holds the facilitator's settlement identity: the signing
// key used to submit transfers on behalf of verified payments.
package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/openx402/facilitator/types"
)

// Signer is an initialized settlement identity. Read-only after
// construction and safe for concurrent use.
type Signer struct {
	key *ecdsa.PrivateKey
}

// NewSigner builds a Signer from a hex-encoded secp256k1 private key.
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(trimHexPrefix(hexKey))
	if err != nil {
		return nil, &types.FacilitatorError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("invalid settlement private key: %v", err),
		}
	}
	return &Signer{key: key}, nil
}

// Sign produces a 65-byte [R || S || V] signature over a 32-byte digest.
func (s *Signer) Sign(digest []byte) ([]byte, error) {
	return crypto.Sign(digest, s.key)
}

// PublicKey returns the signer's public key.
func (s *Signer) PublicKey() *ecdsa.PublicKey {
	return &s.key.PublicKey
}

// Address returns the signer's 20-byte account address.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// SignEthereumTx signs an EVM transaction for the given chain id.
func (s *Signer) SignEthereumTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	return ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), s.key)
}

// Provider is the process-wide holder of the settlement identity. It is
// initialized at most once, even under concurrent startup paths, and is
// read-only afterwards.
type Provider struct {
	once   sync.Once
	mu     sync.RWMutex
	signer *Signer
	err    error
}

// NewProvider returns an uninitialized Provider. Settlement is unavailable
// until Init succeeds.
func NewProvider() *Provider {
	return &Provider{}
}

// Init installs the settlement key. Only the first call has any effect;
// subsequent calls return the outcome of the first.
func (p *Provider) Init(hexKey string) error {
	p.once.Do(func() {
		signer, err := NewSigner(hexKey)
		p.mu.Lock()
		p.signer, p.err = signer, err
		p.mu.Unlock()
	})

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// IsAvailable reports whether a settlement identity is configured.
func (p *Provider) IsAvailable() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.signer != nil
}

// Get returns the settlement identity, or a configuration error if the
// provider was never successfully initialized.
func (p *Provider) Get() (*Signer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.signer == nil {
		return nil, &types.FacilitatorError{
			Code:    types.ErrWalletNotConfigured,
			Message: "settlement wallet is not configured",
		}
	}
	return p.signer, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
