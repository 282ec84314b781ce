// Package codec translates between the Base64 payment header presented by a
// payer and the structured PaymentToken the engines operate on.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/openx402/facilitator/types"
)

// Decode interprets header as Base64-encoded UTF-8 JSON matching the
// PaymentToken shape. Malformed Base64 or JSON, or a structurally
// incomplete token, yields an error and never a partial token.
func Decode(header string) (*types.PaymentToken, error) {
	if header == "" {
		return nil, &types.FacilitatorError{
			Code:    types.ErrInvalidPayload,
			Message: "payment header is empty",
		}
	}

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, &types.FacilitatorError{
			Code:    types.ErrInvalidPayload,
			Message: fmt.Sprintf("payment header is not valid base64: %v", err),
		}
	}

	var token types.PaymentToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, &types.FacilitatorError{
			Code:    types.ErrInvalidPayload,
			Message: fmt.Sprintf("payment header is not valid JSON: %v", err),
		}
	}

	if err := validateShape(&token); err != nil {
		return nil, err
	}

	return &token, nil
}

// Encode is the inverse of Decode: canonical JSON then Base64.
// Decode(Encode(t)) == t for every valid token t.
func Encode(token *types.PaymentToken) (string, error) {
	if token == nil {
		return "", &types.FacilitatorError{
			Code:    types.ErrInvalidPayload,
			Message: "payment token is nil",
		}
	}

	raw, err := json.Marshal(token)
	if err != nil {
		return "", &types.FacilitatorError{
			Code:    types.ErrInvalidPayload,
			Message: fmt.Sprintf("failed to encode payment token: %v", err),
		}
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

func validateShape(token *types.PaymentToken) error {
	missing := func(field string) error {
		return &types.FacilitatorError{
			Code:    types.ErrInvalidPayload,
			Message: fmt.Sprintf("payment token is missing %s", field),
		}
	}

	switch {
	case token.Scheme == "":
		return missing("scheme")
	case token.Network == "":
		return missing("network")
	case token.Payload.From == "":
		return missing("payload.from")
	case token.Payload.To == "":
		return missing("payload.to")
	case token.Payload.Value == "":
		return missing("payload.value")
	case token.Payload.ValidAfter == "":
		return missing("payload.validAfter")
	case token.Payload.ValidBefore == "":
		return missing("payload.validBefore")
	case token.Payload.Nonce == "":
		return missing("payload.nonce")
	}

	return nil
}
