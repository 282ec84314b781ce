package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openx402/facilitator/types"
)

func TestSigningMessage(t *testing.T) {
	payload := types.TransferPayload{
		From:        "41aa",
		To:          "41bb",
		Value:       "1000",
		ValidAfter:  "100",
		ValidBefore: "200",
		Nonce:       "n1",
	}

	assert.Equal(t, "41aa|41bb|1000|100|200|n1", SigningMessage(&payload))

	token := "41cc"
	payload.TokenAddress = &token
	assert.Equal(t, "41aa|41bb|1000|100|200|n1|41cc", SigningMessage(&payload))
}

func TestGenerateNonce(t *testing.T) {
	a := GenerateNonce()
	b := GenerateNonce()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestParseBigInt(t *testing.T) {
	n, err := ParseBigInt("123456789012345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", n.String())

	for _, bad := range []string{"", "1.5", "0x10", "abc", "1e6"} {
		_, err := ParseBigInt(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseAmount(t *testing.T) {
	dec, err := ParseAmount("1.5")
	require.NoError(t, err)
	assert.Equal(t, "1.5", dec.String())

	_, err = ParseAmount("-1")
	require.Error(t, err)

	_, err = ParseAmount("")
	require.Error(t, err)
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1.5", FormatUnits(big.NewInt(1_500_000), 6))
	assert.Equal(t, "0.000001", FormatUnits(big.NewInt(1), 6))
	assert.Equal(t, "1000", FormatUnits(big.NewInt(1000), 0))
}

func TestParsePaymentRequirements(t *testing.T) {
	data := []byte(`{
		"scheme": "x-transfer",
		"network": "tron-mainnet",
		"maxAmountRequired": "1000",
		"resource": "https://example.com/paid",
		"payTo": "41a614f803b6fd780986a42c78ec9c7f77e6ded13c"
	}`)

	req, err := ParsePaymentRequirements(data)
	require.NoError(t, err)
	assert.Equal(t, "x-transfer", req.Scheme)
	assert.Equal(t, "1000", req.MaxAmountRequired)

	_, err = ParsePaymentRequirements([]byte(`{"scheme": "x-transfer"}`))
	require.Error(t, err)

	_, err = ParsePaymentRequirements([]byte(`not json`))
	require.Error(t, err)
}
