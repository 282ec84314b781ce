// Package facilitator implements an x402-style payment facilitator: it
// verifies client-presented payment authorizations against caller-declared
// requirements and, on request, executes the underlying on-chain transfer
// and confirms it reached a terminal state. Networks and schemes plug in
// through a common envelope and an abstract chain-client capability.
package facilitator

import (
	"context"
	"fmt"
	"time"

	"github.com/openx402/facilitator/clients"
	"github.com/openx402/facilitator/config"
	"github.com/openx402/facilitator/logger"
	"github.com/openx402/facilitator/metrics"
	"github.com/openx402/facilitator/settlement"
	"github.com/openx402/facilitator/types"
	"github.com/openx402/facilitator/verification"
	"github.com/openx402/facilitator/wallet"
)

const ProtocolVersion = 1

// Facilitator composes the verification and settlement engines with the
// process-wide wallet provider. Construct once at startup; safe for
// concurrent use afterwards.
type Facilitator struct {
	verification *verification.Service
	settlement   *settlement.Service
	wallet       *wallet.Provider

	logger  logger.Logger
	metrics metrics.Recorder

	pollInterval time.Duration
	pollAttempts uint

	supported []types.SupportedKind
}

// New creates a Facilitator with no networks registered and no settlement
// identity. Register clients and, for settlement, configure the wallet.
func New(opts ...Option) *Facilitator {
	f := &Facilitator{
		wallet:  wallet.NewProvider(),
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(f)
	}

	f.verification = verification.NewService(f.logger, f.metrics)
	f.settlement = settlement.NewService(f.verification, f.wallet, f.logger, f.metrics)

	if f.pollInterval > 0 || f.pollAttempts > 0 {
		p := settlement.Poller{Interval: f.pollInterval, Attempts: f.pollAttempts}
		if p.Interval <= 0 {
			p.Interval = 2 * time.Second
		}
		if p.Attempts == 0 {
			p.Attempts = 30
		}
		f.settlement.SetPoller(p)
	}

	return f
}

// NewFromConfig builds a fully wired Facilitator from environment-derived
// configuration: logger, metrics, one chain client per configured network,
// and the settlement wallet when a key is present.
func NewFromConfig(cfg *config.Config) (*Facilitator, error) {
	opts := []Option{
		WithLogger(logger.NewZapLogger(cfg.LogLevel)),
		WithPollInterval(cfg.PollInterval),
		WithPollAttempts(cfg.PollAttempts),
	}
	if cfg.EnableMetrics {
		opts = append(opts, WithMetrics(metrics.NewPrometheusRecorder()))
	}

	f := New(opts...)

	for _, endpoint := range cfg.Networks {
		if err := f.AddNetwork(endpoint.Network, endpoint.RPCURL); err != nil {
			return nil, err
		}
	}

	if cfg.PrivateKey != "" {
		if err := f.ConfigureWallet(cfg.PrivateKey); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// AddNetwork creates the appropriate chain client for the network family
// and registers it with both engines.
func (f *Facilitator) AddNetwork(network types.Network, rpcURL string) error {
	var (
		client clients.ChainClient
		err    error
	)

	switch {
	case network.IsTron():
		client, err = clients.NewTronClient(network, rpcURL)
	case network.IsEVM():
		client, err = clients.NewEVMClient(network, rpcURL)
	default:
		return &types.FacilitatorError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", network),
		}
	}
	if err != nil {
		return err
	}

	f.RegisterClient(client)
	return nil
}

// RegisterClient registers an already-constructed chain client with both
// engines and records its supported payment kinds.
func (f *Facilitator) RegisterClient(client clients.ChainClient) {
	f.verification.RegisterClient(client)
	f.settlement.RegisterClient(client)

	for _, scheme := range []types.PaymentScheme{types.SchemeTransfer, types.SchemeExact} {
		f.supported = append(f.supported, types.SupportedKind{
			X402Version: ProtocolVersion,
			Scheme:      string(scheme),
			Network:     client.Network().String(),
		})
	}
}

// ConfigureWallet installs the settlement identity. Only the first call
// has any effect.
func (f *Facilitator) ConfigureWallet(hexKey string) error {
	return f.wallet.Init(hexKey)
}

// Verify validates a payment header against requirements without touching
// chain state.
func (f *Facilitator) Verify(ctx context.Context, header string, requirements *types.PaymentRequirements) (*types.VerificationResult, error) {
	return f.verification.Verify(ctx, header, requirements)
}

// BatchVerify verifies multiple independent payments concurrently.
func (f *Facilitator) BatchVerify(ctx context.Context, headers []string, requirements []*types.PaymentRequirements) ([]*types.VerificationResult, error) {
	if len(headers) == 0 {
		return nil, &types.FacilitatorError{
			Code:    types.ErrInvalidPayload,
			Message: "at least one payment header is required",
		}
	}
	return f.verification.BatchVerify(ctx, headers, requirements)
}

// Settle re-verifies the payment and executes the transfer it describes.
func (f *Facilitator) Settle(ctx context.Context, header string, requirements *types.PaymentRequirements) (*types.SettlementResult, error) {
	return f.settlement.Settle(ctx, header, requirements)
}

// IsSettlementAvailable reports whether a settlement identity is
// configured.
func (f *Facilitator) IsSettlementAvailable() bool {
	return f.settlement.IsAvailable()
}

// IsNetworkSupported checks if a network is registered with both engines.
func (f *Facilitator) IsNetworkSupported(network types.Network) bool {
	return f.verification.IsNetworkSupported(network) &&
		f.settlement.IsNetworkSupported(network)
}

// Supported returns the (scheme, network) kinds this facilitator accepts.
func (f *Facilitator) Supported() *types.SupportedResponse {
	kinds := make([]types.SupportedKind, len(f.supported))
	copy(kinds, f.supported)
	return &types.SupportedResponse{Kinds: kinds}
}

// Close releases all client connections.
func (f *Facilitator) Close() {
	f.verification.Close()
}
