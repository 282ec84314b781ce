package utils

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/openx402/facilitator/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ParseBigInt parses a decimal string as an arbitrary-precision integer.
// Amounts are always handled this way; float parsing would silently lose
// precision on large smallest-unit values.
func ParseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("value cannot be empty")
	}

	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer format: %q", value)
	}

	return n, nil
}

// ParseAmount checks that an amount string is a valid non-negative decimal.
func ParseAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// FormatUnits renders a smallest-unit amount as a human-readable decimal
// with the given number of decimals (e.g. 1500000 with 6 decimals is
// "1.5"). Display only; the engines never compare formatted amounts.
func FormatUnits(value *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(value, -decimals).String()
}

// ParsePaymentRequirements parses and validates PaymentRequirements from
// JSON, using the struct tags plus the explicit Validate method.
func ParsePaymentRequirements(data []byte) (*types.PaymentRequirements, error) {
	var req types.PaymentRequirements

	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &types.FacilitatorError{
			Code:    types.ErrInvalidRequirements,
			Message: fmt.Sprintf("failed to parse payment requirements: %v", err),
		}
	}

	if err := validate.Struct(&req); err != nil {
		return nil, &types.FacilitatorError{
			Code:    types.ErrInvalidRequirements,
			Message: fmt.Sprintf("validation failed: %v", err),
		}
	}

	return &req, nil
}

// ValidateTransferPayload checks a decoded payload for structural
// completeness via its struct tags.
func ValidateTransferPayload(p *types.TransferPayload) error {
	if err := validate.Struct(p); err != nil {
		return &types.FacilitatorError{
			Code:    types.ErrInvalidPayload,
			Message: fmt.Sprintf("validation failed: %v", err),
		}
	}
	return nil
}
