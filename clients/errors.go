package clients

// Stable machine-greppable reason prefixes shared by the engines and their
// tests. Human-readable detail is appended after the prefix where the
// checks have something specific to say.
const (
	// -----------------------------
	// HEADER / ENVELOPE
	// -----------------------------
	ReasonMalformedHeader = "malformed header"
	ReasonSchemeMismatch  = "scheme mismatch"
	ReasonNetworkMismatch = "network mismatch"

	// -----------------------------
	// PAYLOAD CHECKS
	// -----------------------------
	ReasonSignatureFailed     = "signature verification failed"
	ReasonInsufficientPayment = "insufficient payment"
	ReasonRecipientMismatch   = "recipient mismatch"
	ReasonNotYetValid         = "not yet valid"
	ReasonExpired             = "expired"

	// -----------------------------
	// SETTLEMENT
	// -----------------------------
	ErrSettlementUnavailable = "settlement unavailable"
	ErrInvalidPaymentHeader  = "invalid payment header"
	ErrUnsupportedScheme     = "unsupported scheme"
	ErrConfirmationTimeout   = "confirmation timed out"
	ErrTransactionReverted   = "transaction failed on-chain"
)
