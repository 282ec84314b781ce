package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go"
)

// errNotConfirmed signals that a status check found no terminal outcome
// yet and the poller should try again.
var errNotConfirmed = errors.New("transaction not yet confirmed")

// Poller runs a bounded sequence of (sleep, status-check) steps at a fixed
// interval. The budget is a safety ceiling, not a substitute for
// caller-level cancellation: the context threads through every sleep and
// check.
type Poller struct {
	Interval time.Duration
	Attempts uint
}

// CheckFunc inspects a submitted transaction once. done reports a terminal
// outcome; a non-nil error alongside done == true is a terminal failure.
// A transient read error may be returned with done == false to consume an
// attempt and retry.
type CheckFunc func(ctx context.Context) (done bool, err error)

// Poll invokes check until it reports a terminal outcome, the attempt
// budget is exhausted, or ctx is cancelled. Exhausting the budget returns
// errNotConfirmed; the transaction may still land later, so callers must
// treat that as an unknown outcome, not a failure.
func (p Poller) Poll(ctx context.Context, check CheckFunc) error {
	return retry.Do(
		func() error {
			done, err := check(ctx)
			if done {
				if err != nil {
					return retry.Unrecoverable(err)
				}
				return nil
			}
			if err != nil {
				return err
			}
			return errNotConfirmed
		},
		retry.Context(ctx),
		retry.Attempts(p.Attempts),
		retry.Delay(p.Interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}
