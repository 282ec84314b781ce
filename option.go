package facilitator

import (
	"time"

	"github.com/openx402/facilitator/logger"
	"github.com/openx402/facilitator/metrics"
)

type Option func(*Facilitator)

func WithLogger(l logger.Logger) Option {
	return func(f *Facilitator) {
		f.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(f *Facilitator) {
		f.metrics = r
	}
}

// WithPollInterval sets the fixed delay between confirmation status
// queries during settlement.
func WithPollInterval(d time.Duration) Option {
	return func(f *Facilitator) {
		f.pollInterval = d
	}
}

// WithPollAttempts sets the confirmation polling attempt budget.
func WithPollAttempts(n uint) Option {
	return func(f *Facilitator) {
		f.pollAttempts = n
	}
}
