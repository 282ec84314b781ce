package types

import "fmt"

// PaymentRequirements defines the constraints a payment must satisfy before
// the facilitator will verify or settle it. Supplied per request, never
// mutated by the engine.
type PaymentRequirements struct {
	// Scheme of the payment protocol to use (e.g., "x-transfer", "exact").
	Scheme string `json:"scheme" validate:"required"`

	// Network of the blockchain to send payment on (e.g., "tron-mainnet").
	Network string `json:"network" validate:"required"`

	// Maximum amount required to pay for the resource, as a decimal string
	// in the asset's smallest unit. A string because Go has no uint256.
	MaxAmountRequired string `json:"maxAmountRequired" validate:"required"`

	// URL of the resource being paid for.
	Resource string `json:"resource"`

	// Description of the resource being purchased.
	Description string `json:"description,omitempty"`

	// Address the payment must be sent to, in any encoding the network
	// accepts. Compared against the payload recipient after normalization.
	PayTo string `json:"payTo" validate:"required"`

	// Maximum time in seconds for the facilitator to respond.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds,omitempty"`
}

// Validate checks that the PaymentRequirements contain all required fields.
func (pr *PaymentRequirements) Validate() error {
	if pr.Scheme == "" {
		return fmt.Errorf("paymentRequirements.scheme is required")
	}

	if pr.Network == "" {
		return fmt.Errorf("paymentRequirements.network is required")
	}

	if pr.MaxAmountRequired == "" {
		return fmt.Errorf("paymentRequirements.maxAmountRequired is required")
	}

	if pr.PayTo == "" {
		return fmt.Errorf("paymentRequirements.payTo is required")
	}

	return nil
}

// TransferPayload is the payload variant carried by transfer-style schemes.
// Amounts and timestamps are decimal strings in the asset's smallest unit
// and unix seconds respectively; they are parsed as arbitrary-precision
// integers, never as floats.
type TransferPayload struct {
	From        string `json:"from" validate:"required"`
	To          string `json:"to" validate:"required"`
	Value       string `json:"value" validate:"required"`
	ValidAfter  string `json:"validAfter" validate:"required"`
	ValidBefore string `json:"validBefore" validate:"required"`

	// Nonce is opaque and scheme-defined. The facilitator does not track
	// consumed nonces; replay protection is the caller's responsibility.
	Nonce string `json:"nonce" validate:"required"`

	// TokenAddress is the token contract to transfer from. Nil means the
	// network's native asset.
	TokenAddress *string `json:"tokenAddress,omitempty"`
}

// IsNative reports whether the payload moves the network's native asset.
func (p *TransferPayload) IsNative() bool {
	return p.TokenAddress == nil || *p.TokenAddress == ""
}

// PaymentToken is the decoded payment a payer presents, constructed once
// per request from the Base64 payment header.
type PaymentToken struct {
	Scheme    string          `json:"scheme"`
	Network   string          `json:"network"`
	Payload   TransferPayload `json:"payload"`
	Signature string          `json:"signature"`
}

// VerificationResult is the outcome of payment verification.
// InvalidReason is present iff the payment is invalid; Payer and
// PaymentToken are present iff it is valid.
type VerificationResult struct {
	IsValid       bool          `json:"isValid"`
	InvalidReason string        `json:"invalidReason,omitempty"`
	Payer         string        `json:"payer,omitempty"`
	PaymentToken  *PaymentToken `json:"paymentToken,omitempty"`
}

// Invalid builds a failed VerificationResult with the given reason.
func Invalid(reason string) *VerificationResult {
	return &VerificationResult{IsValid: false, InvalidReason: reason}
}

// SettlementResult is the outcome of a settlement attempt.
//
// TransactionHash is set as soon as a transaction has been submitted, even
// when the attempt later fails or times out, so callers can reconcile. A
// timeout is an unknown outcome, not a confirmed failure: the transaction
// may still land after the polling budget is exhausted.
type SettlementResult struct {
	Success         bool   `json:"success"`
	Network         string `json:"network,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
	SettledAmount   string `json:"settledAmount,omitempty"`
	Error           string `json:"error,omitempty"`
}

// SupportedKind describes one (scheme, network) pair the facilitator
// accepts.
type SupportedKind struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
}

type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}

// FacilitatorError is the structured error type for capability and
// configuration failures. Verification failures are not errors; they are
// reported through VerificationResult.InvalidReason.
type FacilitatorError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *FacilitatorError) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrInvalidPayload      = "INVALID_PAYLOAD"
	ErrInvalidRequirements = "INVALID_REQUIREMENTS"
	ErrUnsupportedNetwork  = "UNSUPPORTED_NETWORK"
	ErrUnsupportedScheme   = "UNSUPPORTED_SCHEME"
	ErrWalletNotConfigured = "WALLET_NOT_CONFIGURED"
	ErrSettlementFailed    = "SETTLEMENT_FAILED"
	ErrNetworkError        = "NETWORK_ERROR"
	ErrConfigError         = "CONFIG_ERROR"
)
