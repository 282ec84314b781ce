package verification

import (
	"context"
	"crypto/ecdsa"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openx402/facilitator/clients"
	"github.com/openx402/facilitator/codec"
	"github.com/openx402/facilitator/logger"
	"github.com/openx402/facilitator/metrics"
	"github.com/openx402/facilitator/types"
	"github.com/openx402/facilitator/utils"
)

const testNow = int64(1_700_000_000)

type harness struct {
	service   *Service
	client    *clients.TronClient
	payerKey  *ecdsa.PrivateKey
	payer     string // canonical hex
	recipient string // canonical hex
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	client := clients.NewTronClientWithNode(types.NetworkTest, nil)

	service := NewService(logger.NoopLogger{}, metrics.NoopRecorder{})
	service.RegisterClient(client)
	service.SetClock(func() time.Time { return time.Unix(testNow, 0) })

	payerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	recipientKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &harness{
		service:   service,
		client:    client,
		payerKey:  payerKey,
		payer:     client.NormalizeAddress(tronAddr(t, payerKey)),
		recipient: client.NormalizeAddress(tronAddr(t, recipientKey)),
	}
}

func tronAddr(t *testing.T, key *ecdsa.PrivateKey) string {
	t.Helper()
	evm := crypto.PubkeyToAddress(key.PublicKey)
	return "41" + evm.Hex()[2:]
}

func (h *harness) payload() types.TransferPayload {
	return types.TransferPayload{
		From:        h.payer,
		To:          h.recipient,
		Value:       "1000",
		ValidAfter:  "0",
		ValidBefore: "9999999999",
		Nonce:       "n1",
	}
}

// signedHeader signs the payload, applies mutate to the assembled token
// (without re-signing), and encodes the header.
func (h *harness) signedHeader(t *testing.T, payload types.TransferPayload, mutate func(*types.PaymentToken)) string {
	t.Helper()

	sig, err := clients.SignTronMessage(h.payerKey, utils.SigningMessage(&payload))
	require.NoError(t, err)

	token := &types.PaymentToken{
		Scheme:    string(types.SchemeTransfer),
		Network:   string(types.NetworkTest),
		Payload:   payload,
		Signature: sig,
	}
	if mutate != nil {
		mutate(token)
	}

	header, err := codec.Encode(token)
	require.NoError(t, err)
	return header
}

func (h *harness) requirements() *types.PaymentRequirements {
	return &types.PaymentRequirements{
		Scheme:            string(types.SchemeTransfer),
		Network:           string(types.NetworkTest),
		MaxAmountRequired: "1000",
		Resource:          "https://example.com/resource",
		PayTo:             h.recipient,
	}
}

func TestVerifyValidPayment(t *testing.T) {
	h := newHarness(t)
	header := h.signedHeader(t, h.payload(), nil)

	result, err := h.service.Verify(context.Background(), header, h.requirements())
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.InvalidReason)
	assert.Equal(t, h.payer, result.Payer)
	require.NotNil(t, result.PaymentToken)
	assert.Equal(t, "1000", result.PaymentToken.Payload.Value)
}

func TestVerifyMalformedHeader(t *testing.T) {
	h := newHarness(t)

	for _, header := range []string{"", "!!!", "bm90IGpzb24="} {
		result, err := h.service.Verify(context.Background(), header, h.requirements())
		require.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Equal(t, "malformed header", result.InvalidReason)
	}
}

func TestVerifySchemeMismatch(t *testing.T) {
	h := newHarness(t)
	header := h.signedHeader(t, h.payload(), func(tok *types.PaymentToken) {
		tok.Scheme = "x-other"
		// Garbage everywhere else: the scheme check must fire first.
		tok.Signature = "junk"
		tok.Payload.Value = "not-a-number"
	})

	result, err := h.service.Verify(context.Background(), header, h.requirements())
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.InvalidReason, "scheme mismatch: expected x-transfer, got x-other")
}

func TestVerifyNetworkMismatch(t *testing.T) {
	h := newHarness(t)
	header := h.signedHeader(t, h.payload(), func(tok *types.PaymentToken) {
		tok.Network = "tron-nile"
	})

	result, err := h.service.Verify(context.Background(), header, h.requirements())
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.InvalidReason, "network mismatch")
}

func TestVerifyUnsupportedNetwork(t *testing.T) {
	h := newHarness(t)
	header := h.signedHeader(t, h.payload(), func(tok *types.PaymentToken) {
		tok.Network = "net-unknown"
	})

	reqs := h.requirements()
	reqs.Network = "net-unknown"

	result, err := h.service.Verify(context.Background(), header, reqs)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.InvalidReason, "unsupported network: net-unknown")
}

func TestVerifyTamperedFieldBreaksSignature(t *testing.T) {
	h := newHarness(t)

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherAddr := h.client.NormalizeAddress(tronAddr(t, other))

	tests := []struct {
		name   string
		mutate func(*types.PaymentToken)
	}{
		{"from", func(tok *types.PaymentToken) { tok.Payload.From = otherAddr }},
		{"to", func(tok *types.PaymentToken) { tok.Payload.To = h.payer }},
		{"value", func(tok *types.PaymentToken) { tok.Payload.Value = "2000" }},
		{"validAfter", func(tok *types.PaymentToken) { tok.Payload.ValidAfter = "1" }},
		{"validBefore", func(tok *types.PaymentToken) { tok.Payload.ValidBefore = "9999999998" }},
		{"nonce", func(tok *types.PaymentToken) { tok.Payload.Nonce = "n2" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			header := h.signedHeader(t, h.payload(), tc.mutate)

			reqs := h.requirements()
			if tc.name == "to" {
				// Keep the recipient check out of the way so the
				// signature failure is the one observed.
				reqs.PayTo = h.payer
			}

			result, err := h.service.Verify(context.Background(), header, reqs)
			require.NoError(t, err)
			assert.False(t, result.IsValid)
			assert.Contains(t, result.InvalidReason, "signature verification failed")
		})
	}
}

func TestVerifySignatureMismatchNamesBothAddresses(t *testing.T) {
	h := newHarness(t)

	payload := h.payload()
	header := h.signedHeader(t, payload, func(tok *types.PaymentToken) {
		tok.Payload.Value = "9999"
	})

	result, err := h.service.Verify(context.Background(), header, h.requirements())
	require.NoError(t, err)
	assert.Contains(t, result.InvalidReason, "recovered ")
	assert.Contains(t, result.InvalidReason, "expected "+h.payer)
}

func TestVerifyAmountBoundary(t *testing.T) {
	h := newHarness(t)

	t.Run("value equal to required is valid", func(t *testing.T) {
		header := h.signedHeader(t, h.payload(), nil)
		result, err := h.service.Verify(context.Background(), header, h.requirements())
		require.NoError(t, err)
		assert.True(t, result.IsValid)
	})

	t.Run("value one below required is insufficient", func(t *testing.T) {
		payload := h.payload()
		payload.Value = "999"
		header := h.signedHeader(t, payload, nil)

		result, err := h.service.Verify(context.Background(), header, h.requirements())
		require.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Contains(t, result.InvalidReason, "insufficient payment")
	})

	t.Run("values beyond int64 compare correctly", func(t *testing.T) {
		huge := "123456789012345678901234567890123456789"
		payload := h.payload()
		payload.Value = huge
		header := h.signedHeader(t, payload, nil)

		reqs := h.requirements()
		reqs.MaxAmountRequired = huge

		result, err := h.service.Verify(context.Background(), header, reqs)
		require.NoError(t, err)
		assert.True(t, result.IsValid)

		reqs.MaxAmountRequired = huge + "0" // ten times larger
		result, err = h.service.Verify(context.Background(), header, reqs)
		require.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Contains(t, result.InvalidReason, "insufficient payment")
	})
}

func TestVerifyRecipientEncodingEquivalence(t *testing.T) {
	h := newHarness(t)
	header := h.signedHeader(t, h.payload(), nil)

	b58, err := clients.EncodeBase58Check(h.recipient)
	require.NoError(t, err)

	reqs := h.requirements()
	reqs.PayTo = b58 // payload.to is hex; payTo is base58 of the same address

	result, err := h.service.Verify(context.Background(), header, reqs)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestVerifyRecipientMismatch(t *testing.T) {
	h := newHarness(t)
	header := h.signedHeader(t, h.payload(), nil)

	reqs := h.requirements()
	reqs.PayTo = h.payer

	result, err := h.service.Verify(context.Background(), header, reqs)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.InvalidReason, "recipient mismatch")
}

func TestVerifyTimeWindowBoundaries(t *testing.T) {
	h := newHarness(t)
	now := testNow

	tests := []struct {
		name        string
		validAfter  int64
		validBefore int64
		valid       bool
		reason      string
	}{
		{"now equals validAfter", now, now + 100, true, ""},
		{"now before validAfter", now + 1, now + 100, false, "not yet valid"},
		{"now equals validBefore", now - 100, now, false, "expired"},
		{"now one before validBefore", now - 100, now + 1, true, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := h.payload()
			payload.ValidAfter = strconv.FormatInt(tc.validAfter, 10)
			payload.ValidBefore = strconv.FormatInt(tc.validBefore, 10)
			header := h.signedHeader(t, payload, nil)

			result, err := h.service.Verify(context.Background(), header, h.requirements())
			require.NoError(t, err)
			assert.Equal(t, tc.valid, result.IsValid)
			if tc.reason != "" {
				assert.Equal(t, tc.reason, result.InvalidReason)
			}
		})
	}
}

func TestVerifyAuthorizationSchemeSkipsDetachedSignature(t *testing.T) {
	h := newHarness(t)

	header := h.signedHeader(t, h.payload(), func(tok *types.PaymentToken) {
		tok.Scheme = string(types.SchemeExact)
		tok.Signature = "not-checked-here"
	})

	reqs := h.requirements()
	reqs.Scheme = string(types.SchemeExact)

	result, err := h.service.Verify(context.Background(), header, reqs)
	require.NoError(t, err)
	assert.True(t, result.IsValid, "authorization-style schemes defer signature checking to the contract")
}

func TestVerifyInvalidRequirements(t *testing.T) {
	h := newHarness(t)
	header := h.signedHeader(t, h.payload(), nil)

	reqs := h.requirements()
	reqs.PayTo = ""

	result, err := h.service.Verify(context.Background(), header, reqs)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.InvalidReason, "invalid requirements")
}

func TestBatchVerify(t *testing.T) {
	h := newHarness(t)

	good := h.signedHeader(t, h.payload(), nil)
	short := h.payload()
	short.Value = "999"
	bad := h.signedHeader(t, short, nil)

	results, err := h.service.BatchVerify(context.Background(),
		[]string{good, bad, "garbage"},
		[]*types.PaymentRequirements{h.requirements(), h.requirements(), h.requirements()},
	)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].IsValid)
	assert.False(t, results[1].IsValid)
	assert.Contains(t, results[1].InvalidReason, "insufficient payment")
	assert.Equal(t, "malformed header", results[2].InvalidReason)
}

func TestBatchVerifyLengthMismatch(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.BatchVerify(context.Background(),
		[]string{"a", "b"},
		[]*types.PaymentRequirements{h.requirements()},
	)
	require.Error(t, err)
}
