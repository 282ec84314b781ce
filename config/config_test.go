package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openx402/facilitator/types"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.PrivateKey)
	assert.Empty(t, cfg.Networks)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.EnableMetrics)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, uint(30), cfg.PollAttempts)
}

func TestLoadFullEnvironment(t *testing.T) {
	t.Setenv("FACILITATOR_PRIVATE_KEY", "abc123")
	t.Setenv("FACILITATOR_NETWORKS", "tron-mainnet=https://api.trongrid.io, base=https://mainnet.base.org")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ENABLE_METRICS", "true")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("POLL_ATTEMPTS", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.PrivateKey)
	require.Len(t, cfg.Networks, 2)
	assert.Equal(t, Endpoint{Network: types.NetworkTron, RPCURL: "https://api.trongrid.io"}, cfg.Networks[0])
	assert.Equal(t, Endpoint{Network: types.NetworkBase, RPCURL: "https://mainnet.base.org"}, cfg.Networks[1])
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.EnableMetrics)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, uint(10), cfg.PollAttempts)
}

func TestLoadRejectsMalformedEndpoint(t *testing.T) {
	t.Setenv("FACILITATOR_NETWORKS", "tron-mainnet")

	_, err := Load()
	require.Error(t, err)

	var ferr *types.FacilitatorError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, types.ErrConfigError, ferr.Code)
}
