// Package clients defines the ChainClient capability the verification and
// settlement engines depend on, plus one adapter per supported network
// family. The engines never import a concrete network SDK; adding a network
// means adding an adapter here, not touching validation logic.
package clients

import (
	"context"
	"math/big"

	"github.com/openx402/facilitator/types"
	"github.com/openx402/facilitator/wallet"
)

// TransactionStatus is the facilitator's view of a submitted transaction.
//
// Found means the transaction is queryable on the network at all. Executed
// means a receipt with an explicit result code exists; Success and Message
// are only meaningful when Executed is true. Token-contract transfers reach
// Executed; native transfers on some families never do, and confirmation
// for them is Found alone (a narrower guarantee, documented on the
// settlement engine).
type TransactionStatus struct {
	Found    bool
	Executed bool
	Success  bool
	Message  string
}

// ChainClient is the capability set a network family adapter must provide.
// Implementations are process-lifetime singletons, read-only after
// construction and safe for concurrent use.
type ChainClient interface {
	// Network returns the network this client serves.
	Network() types.Network

	// NormalizeAddress maps any encoding the network defines onto one
	// canonical lower-case hex form. Non-address input is normalized
	// best-effort and never panics or errors; it simply compares unequal
	// to every valid address.
	NormalizeAddress(addr string) string

	// RecoverSigner recovers the address that signed message.
	RecoverSigner(message, signature string) (string, error)

	// VerifySignature checks that signature over message was produced by
	// claimedAddress. It fails closed: any internal error means "not
	// verified", never a crash.
	VerifySignature(message, signature, claimedAddress string) bool

	// TransferNative submits a native-asset transfer signed by the
	// facilitator's wallet and returns a transaction identifier.
	TransferNative(ctx context.Context, signer *wallet.Signer, to string, value *big.Int) (string, error)

	// TransferToken submits a transfer-method invocation against the given
	// token contract and returns a transaction identifier.
	TransferToken(ctx context.Context, signer *wallet.Signer, tokenAddress, to string, value *big.Int) (string, error)

	// TransactionStatus fetches the current status of a submitted
	// transaction. A not-yet-visible transaction yields Found == false, not
	// an error.
	TransactionStatus(ctx context.Context, txID string) (*TransactionStatus, error)

	// Close releases any underlying connections.
	Close()
}
