// Package config loads facilitator configuration from the environment.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/openx402/facilitator/types"
)

// Endpoint binds a network to the RPC endpoint its chain client talks to.
type Endpoint struct {
	Network types.Network
	RPCURL  string
}

type endpointList []Endpoint

// Config is immutable after Load; the engines treat it as startup input.
type Config struct {
	// PrivateKey is the hex-encoded settlement key. Empty means the
	// facilitator can verify but not settle.
	PrivateKey string `env:"FACILITATOR_PRIVATE_KEY"`

	// Networks maps networks to RPC endpoints, e.g.
	// "tron-mainnet=https://api.trongrid.io,base=https://mainnet.base.org".
	Networks endpointList `env:"FACILITATOR_NETWORKS"`

	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	EnableMetrics bool          `env:"ENABLE_METRICS" envDefault:"false"`
	PollInterval  time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	PollAttempts  uint          `env:"POLL_ATTEMPTS" envDefault:"30"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var c Config
	err := env.ParseWithFuncs(&c, map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(endpointList{}): parseEndpoints,
	})
	if err != nil {
		return nil, &types.FacilitatorError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("config parsing failed: %v", err),
		}
	}
	return &c, nil
}

func parseEndpoints(v string) (interface{}, error) {
	var endpoints endpointList
	for _, entry := range strings.Split(v, ",") {
		network, url, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || network == "" || url == "" {
			return nil, fmt.Errorf("malformed network endpoint %q, want network=url", entry)
		}
		endpoints = append(endpoints, Endpoint{
			Network: types.Network(network),
			RPCURL:  url,
		})
	}
	return endpoints, nil
}
