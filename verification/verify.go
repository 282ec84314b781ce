// Package verification implements the ordered validation pipeline a
// payment token must pass before it can be settled. The checks run in a
// fixed order and the first failure short-circuits, so the invalid reasons
// are deterministic and testable.
package verification

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/openx402/facilitator/clients"
	"github.com/openx402/facilitator/codec"
	"github.com/openx402/facilitator/logger"
	"github.com/openx402/facilitator/metrics"
	"github.com/openx402/facilitator/types"
	"github.com/openx402/facilitator/utils"
)

// Verifier is the contract for payment verification.
type Verifier interface {
	Verify(ctx context.Context, header string, requirements *types.PaymentRequirements) (*types.VerificationResult, error)
}

// Service verifies payments across the registered networks. Verification
// never mutates chain state and never blocks on remote calls; the only
// cryptography is local signature math inside the chain client.
type Service struct {
	clients map[types.Network]clients.ChainClient
	now     func() time.Time
	logger  logger.Logger
	metrics metrics.Recorder
}

// NewService creates a verification service. Clients are registered at
// startup; the service is read-only afterwards.
func NewService(log logger.Logger, rec metrics.Recorder) *Service {
	return &Service{
		clients: make(map[types.Network]clients.ChainClient),
		now:     time.Now,
		logger:  log,
		metrics: rec,
	}
}

// RegisterClient adds a chain client for its network.
func (s *Service) RegisterClient(c clients.ChainClient) {
	s.clients[c.Network()] = c
}

// SetClock substitutes the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// IsNetworkSupported reports whether a client is registered for network.
func (s *Service) IsNetworkSupported(network types.Network) bool {
	_, ok := s.clients[network]
	return ok
}

// Networks lists all registered networks.
func (s *Service) Networks() []types.Network {
	networks := make([]types.Network, 0, len(s.clients))
	for network := range s.clients {
		networks = append(networks, network)
	}
	return networks
}

// Verify decodes the payment header and validates it against the
// requirements. All input and validation failures come back as a
// structured invalid result, never as a Go error.
func (s *Service) Verify(ctx context.Context, header string, requirements *types.PaymentRequirements) (*types.VerificationResult, error) {
	start := s.now()

	result := s.verify(ctx, header, requirements)

	labels := map[string]string{"network": requirements.Network}
	s.metrics.ObserveLatency("verify", s.now().Sub(start), labels)
	if result.IsValid {
		s.metrics.IncCounter("verify_valid", labels)
	} else {
		s.metrics.IncCounter("verify_invalid", labels)
		s.logger.Debug("payment rejected", map[string]any{
			"network": requirements.Network,
			"reason":  result.InvalidReason,
		})
	}

	return result, nil
}

func (s *Service) verify(ctx context.Context, header string, requirements *types.PaymentRequirements) *types.VerificationResult {
	if err := requirements.Validate(); err != nil {
		return types.Invalid(fmt.Sprintf("invalid requirements: %v", err))
	}

	token, err := codec.Decode(header)
	if err != nil {
		return types.Invalid(clients.ReasonMalformedHeader)
	}

	return s.VerifyToken(ctx, token, requirements)
}

// VerifyToken runs the validation pipeline on an already-decoded token.
// The settlement engine re-runs this on every settle call; no verification
// result is ever trusted across calls.
func (s *Service) VerifyToken(ctx context.Context, token *types.PaymentToken, requirements *types.PaymentRequirements) *types.VerificationResult {
	if token.Scheme != requirements.Scheme {
		return types.Invalid(fmt.Sprintf("%s: expected %s, got %s",
			clients.ReasonSchemeMismatch, requirements.Scheme, token.Scheme))
	}

	if token.Network != requirements.Network {
		return types.Invalid(fmt.Sprintf("%s: expected %s, got %s",
			clients.ReasonNetworkMismatch, requirements.Network, token.Network))
	}

	client, ok := s.clients[types.Network(token.Network)]
	if !ok {
		return types.Invalid(fmt.Sprintf("unsupported network: %s", token.Network))
	}

	payload := &token.Payload

	// Transfer-style schemes carry a detached signature over the payload.
	// Authorization-style schemes do not: there the authorization signature
	// itself is the transfer authority, checked on-chain at settlement.
	if types.PaymentScheme(token.Scheme).RequiresProof() {
		if reason := s.checkSignature(client, payload, token.Signature); reason != "" {
			return types.Invalid(reason)
		}
	}

	value, err := utils.ParseBigInt(payload.Value)
	if err != nil {
		return types.Invalid(fmt.Sprintf("invalid payment value: %v", err))
	}

	required, err := utils.ParseBigInt(requirements.MaxAmountRequired)
	if err != nil {
		return types.Invalid(fmt.Sprintf("invalid maxAmountRequired: %v", err))
	}

	if value.Cmp(required) < 0 {
		return types.Invalid(fmt.Sprintf("%s: got %s, require %s",
			clients.ReasonInsufficientPayment, payload.Value, requirements.MaxAmountRequired))
	}

	if client.NormalizeAddress(payload.To) != client.NormalizeAddress(requirements.PayTo) {
		return types.Invalid(clients.ReasonRecipientMismatch)
	}

	if reason := s.checkTimeWindow(payload); reason != "" {
		return types.Invalid(reason)
	}

	return &types.VerificationResult{
		IsValid:      true,
		Payer:        payload.From,
		PaymentToken: token,
	}
}

func (s *Service) checkSignature(client clients.ChainClient, payload *types.TransferPayload, signature string) string {
	message := utils.SigningMessage(payload)

	recovered, err := client.RecoverSigner(message, signature)
	if err != nil {
		return fmt.Sprintf("%s: %v", clients.ReasonSignatureFailed, err)
	}

	claimed := client.NormalizeAddress(payload.From)
	if recovered != claimed {
		return fmt.Sprintf("%s: recovered %s, expected %s",
			clients.ReasonSignatureFailed, recovered, claimed)
	}

	return ""
}

func (s *Service) checkTimeWindow(payload *types.TransferPayload) string {
	validAfter, err := utils.ParseBigInt(payload.ValidAfter)
	if err != nil {
		return fmt.Sprintf("invalid validAfter: %v", err)
	}

	validBefore, err := utils.ParseBigInt(payload.ValidBefore)
	if err != nil {
		return fmt.Sprintf("invalid validBefore: %v", err)
	}

	now := new(big.Int).SetInt64(s.now().Unix())
	if now.Cmp(validAfter) < 0 {
		return clients.ReasonNotYetValid
	}
	if now.Cmp(validBefore) >= 0 {
		return clients.ReasonExpired
	}

	return ""
}

// BatchVerify verifies independent payments concurrently. Verification is
// stateless, so no coordination beyond result collection is needed.
func (s *Service) BatchVerify(ctx context.Context, headers []string, requirements []*types.PaymentRequirements) ([]*types.VerificationResult, error) {
	if len(headers) != len(requirements) {
		return nil, &types.FacilitatorError{
			Code:    types.ErrInvalidPayload,
			Message: "number of headers must match number of requirements",
		}
	}

	type indexed struct {
		index  int
		result *types.VerificationResult
	}

	resultChan := make(chan indexed, len(headers))
	for i := range headers {
		go func(i int) {
			result, _ := s.Verify(ctx, headers[i], requirements[i])
			resultChan <- indexed{index: i, result: result}
		}(i)
	}

	results := make([]*types.VerificationResult, len(headers))
	for range headers {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-resultChan:
			results[res.index] = res.result
		}
	}

	return results, nil
}

// Close closes all registered clients.
func (s *Service) Close() {
	for _, client := range s.clients {
		client.Close()
	}
}
