package utils

import (
	"strings"

	"github.com/google/uuid"

	"github.com/openx402/facilitator/types"
)

// SigningMessageDelimiter separates the payload fields in the canonical
// signing message. None of the joined fields (addresses, decimal strings,
// nonces) may contain it.
const SigningMessageDelimiter = "|"

// SigningMessage builds the canonical message a transfer-style payload is
// signed over: the ordered payload fields joined with the fixed delimiter.
// TokenAddress participates only when present, so native and token
// payloads can never collide.
func SigningMessage(p *types.TransferPayload) string {
	fields := []string{
		p.From,
		p.To,
		p.Value,
		p.ValidAfter,
		p.ValidBefore,
		p.Nonce,
	}
	if !p.IsNative() {
		fields = append(fields, *p.TokenAddress)
	}
	return strings.Join(fields, SigningMessageDelimiter)
}

// GenerateNonce returns a fresh opaque nonce for payload builders.
func GenerateNonce() string {
	return uuid.NewString()
}
