// Package settlement executes the on-chain transfer described by a
// verified payment token and confirms it reached a terminal state.
//
// Every settle call re-runs the full verification pipeline first; no
// verification result is trusted across calls. A failed submission is
// never retried automatically, and the engine does not deduplicate by
// nonce — replay protection is the caller's responsibility.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openx402/facilitator/clients"
	"github.com/openx402/facilitator/codec"
	"github.com/openx402/facilitator/logger"
	"github.com/openx402/facilitator/metrics"
	"github.com/openx402/facilitator/types"
	"github.com/openx402/facilitator/utils"
	"github.com/openx402/facilitator/verification"
	"github.com/openx402/facilitator/wallet"
)

const (
	// Confirmation polling defaults: 2s interval, 30 attempts, ~60s ceiling.
	defaultPollInterval = 2 * time.Second
	defaultPollAttempts = 30
)

// Settler is the contract for payment settlement.
type Settler interface {
	Settle(ctx context.Context, header string, requirements *types.PaymentRequirements) (*types.SettlementResult, error)
}

// Service settles payments across the registered networks.
type Service struct {
	clients  map[types.Network]clients.ChainClient
	verifier *verification.Service
	wallet   *wallet.Provider
	poller   Poller
	logger   logger.Logger
	metrics  metrics.Recorder
}

// NewService creates a settlement service sharing the verification
// service's pipeline and the process-wide wallet provider.
func NewService(verifier *verification.Service, provider *wallet.Provider, log logger.Logger, rec metrics.Recorder) *Service {
	return &Service{
		clients:  make(map[types.Network]clients.ChainClient),
		verifier: verifier,
		wallet:   provider,
		poller:   Poller{Interval: defaultPollInterval, Attempts: defaultPollAttempts},
		logger:   log,
		metrics:  rec,
	}
}

// RegisterClient adds a chain client for its network.
func (s *Service) RegisterClient(c clients.ChainClient) {
	s.clients[c.Network()] = c
}

// SetPoller overrides the confirmation polling schedule.
func (s *Service) SetPoller(p Poller) {
	s.poller = p
}

// IsAvailable reports whether the settlement identity is configured.
func (s *Service) IsAvailable() bool {
	return s.wallet.IsAvailable()
}

// IsNetworkSupported reports whether a client is registered for network.
func (s *Service) IsNetworkSupported(network types.Network) bool {
	_, ok := s.clients[network]
	return ok
}

// Settle verifies the payment token, dispatches the transfer it describes,
// and polls for confirmation. All failures come back inside the
// SettlementResult; only context cancellation surfaces as a Go error.
func (s *Service) Settle(ctx context.Context, header string, requirements *types.PaymentRequirements) (*types.SettlementResult, error) {
	start := time.Now()

	result, err := s.settle(ctx, header, requirements)
	if err != nil {
		return nil, err
	}

	labels := map[string]string{"network": requirements.Network}
	s.metrics.ObserveLatency("settle", time.Since(start), labels)
	if result.Success {
		s.metrics.IncCounter("settle_success", labels)
	} else {
		s.metrics.IncCounter("settle_failed", labels)
	}

	return result, nil
}

func (s *Service) settle(ctx context.Context, header string, requirements *types.PaymentRequirements) (*types.SettlementResult, error) {
	fail := func(msg string) *types.SettlementResult {
		return &types.SettlementResult{
			Success: false,
			Network: requirements.Network,
			Error:   msg,
		}
	}

	// Capability check comes first: without a signer nothing can be
	// settled, regardless of how good the payment is.
	if !s.wallet.IsAvailable() {
		return fail(clients.ErrSettlementUnavailable), nil
	}

	token, err := codec.Decode(header)
	if err != nil {
		return fail(clients.ErrInvalidPaymentHeader), nil
	}

	if vr := s.verifier.VerifyToken(ctx, token, requirements); !vr.IsValid {
		return fail(fmt.Sprintf("verification failed: %s", vr.InvalidReason)), nil
	}

	if !types.PaymentScheme(token.Scheme).IsKnown() {
		return fail(fmt.Sprintf("%s: %s", clients.ErrUnsupportedScheme, token.Scheme)), nil
	}

	client, ok := s.clients[types.Network(token.Network)]
	if !ok {
		return fail(fmt.Sprintf("unsupported network: %s", token.Network)), nil
	}

	signer, err := s.wallet.Get()
	if err != nil {
		return fail(clients.ErrSettlementUnavailable), nil
	}

	payload := &token.Payload
	value, err := utils.ParseBigInt(payload.Value)
	if err != nil {
		// Unreachable after verification, kept as a guard.
		return fail(fmt.Sprintf("invalid payment value: %v", err)), nil
	}

	// Dispatch on the one documented payload discriminant: tokenAddress
	// present routes to the contract path, absent to the native path.
	var txID string
	if payload.IsNative() {
		txID, err = client.TransferNative(ctx, signer, payload.To, value)
	} else {
		txID, err = client.TransferToken(ctx, signer, *payload.TokenAddress, payload.To, value)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("settlement submission failed", map[string]any{
			"network": token.Network,
			"error":   err.Error(),
		})
		return fail(fmt.Sprintf("submission failed: %v", err)), nil
	}

	s.logger.Info("transaction submitted", map[string]any{
		"network": token.Network,
		"txID":    txID,
		"native":  payload.IsNative(),
	})

	if err := s.awaitConfirmation(ctx, client, txID, payload.IsNative()); err != nil {
		// The transaction id always travels with the failure so callers
		// can reconcile later; a timeout or cancellation is an unknown
		// outcome, not a confirmed failure.
		result := fail(confirmationError(err, txID))
		result.TransactionHash = txID
		return result, nil
	}

	return &types.SettlementResult{
		Success:         true,
		Network:         token.Network,
		TransactionHash: txID,
		SettledAmount:   payload.Value,
	}, nil
}

// awaitConfirmation polls transaction status until terminal.
//
// The contract path requires a receipt with a success result. The native
// path has no result discriminant on some network families, so its
// confirmation is only "status became queryable" — a strictly narrower
// guarantee, preserved deliberately.
func (s *Service) awaitConfirmation(ctx context.Context, client clients.ChainClient, txID string, native bool) error {
	return s.poller.Poll(ctx, func(ctx context.Context) (bool, error) {
		status, err := client.TransactionStatus(ctx, txID)
		if err != nil {
			// Transient read failure; consumes an attempt.
			return false, err
		}

		if native {
			return status.Found, nil
		}

		if !status.Executed {
			return false, nil
		}
		if !status.Success {
			return true, fmt.Errorf("%s: %s", clients.ErrTransactionReverted, status.Message)
		}
		return true, nil
	})
}

func confirmationError(err error, txID string) string {
	if errors.Is(err, errNotConfirmed) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Sprintf("%s: transaction %s outcome unknown", clients.ErrConfirmationTimeout, txID)
	}
	return err.Error()
}
