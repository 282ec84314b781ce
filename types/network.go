package types

// Network identifies a supported blockchain network.
type Network string

const (
	// TRON networks
	NetworkTron       Network = "tron-mainnet"
	NetworkTronShasta Network = "tron-shasta" // testnet
	NetworkTronNile   Network = "tron-nile"   // testnet

	// EVM networks
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia" // testnet
	NetworkPolygon     Network = "polygon"
	NetworkPolygonAmoy Network = "polygon-amoy" // testnet

	// Local development network used throughout the tests.
	NetworkTest Network = "net-test"
)

// PaymentScheme names a payment method. The scheme defines the payload and
// signature shape and which validation rules apply.
type PaymentScheme string

const (
	// SchemeTransfer is the transfer-style scheme: the payload carries a
	// detached signature over its ordered fields, verified by the engine.
	SchemeTransfer PaymentScheme = "x-transfer"

	// SchemeExact is the token-authorization scheme (EIP-3009 style): the
	// authorization signature itself is the transfer authority and is
	// checked by the token contract at settlement time.
	SchemeExact PaymentScheme = "exact"
)

// RequiresProof reports whether the scheme carries a detached signature
// over the payload that the verification engine must check itself.
func (s PaymentScheme) RequiresProof() bool {
	return s == SchemeTransfer
}

// IsKnown reports whether the scheme is one the engine can dispatch on.
func (s PaymentScheme) IsKnown() bool {
	return s == SchemeTransfer || s == SchemeExact
}

func (n Network) IsTron() bool {
	return n == NetworkTron || n == NetworkTronShasta || n == NetworkTronNile
}

func (n Network) IsEVM() bool {
	return n == NetworkBase || n == NetworkBaseSepolia || n == NetworkPolygon || n == NetworkPolygonAmoy
}

func (n Network) IsTestnet() bool {
	return n == NetworkTronShasta || n == NetworkTronNile || n == NetworkBaseSepolia || n == NetworkPolygonAmoy || n == NetworkTest
}

func (n Network) String() string {
	return string(n)
}
