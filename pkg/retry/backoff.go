package retry

import (
	"context"
	"math/rand"
	"time"
)

// Backoff computes the pause after the given failed attempt. Attempt 0 means
// nothing has failed yet and always yields no pause.
type Backoff interface {
	Delay(failed int) time.Duration
}

// ExponentialBackoff grows the pause by Multiplier after every failure and
// caps it at MaxDelay. Stale element reads use it so a page that is still
// rendering gets progressively more time.
type ExponentialBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Multiplier defaults to 2
	Multiplier float64
	// JitterFactor spreads the pause by up to +/- this fraction
	JitterFactor float64
}

func (b *ExponentialBackoff) Delay(failed int) time.Duration {
	if failed <= 0 || b.BaseDelay <= 0 {
		return 0
	}

	factor := b.Multiplier
	if factor <= 0 {
		factor = 2
	}

	d := float64(b.BaseDelay)
	for i := 1; i < failed; i++ {
		d *= factor
		if b.MaxDelay > 0 && d >= float64(b.MaxDelay) {
			break
		}
	}
	if b.MaxDelay > 0 && d > float64(b.MaxDelay) {
		d = float64(b.MaxDelay)
	}

	if b.JitterFactor > 0 {
		spread := d * b.JitterFactor
		d += spread * (2*rand.Float64() - 1)
	}
	return time.Duration(max(d, 0))
}

// FixedBackoff pauses for the same Interval after every failure. Fetch and
// pipeline policies use it.
type FixedBackoff struct {
	Interval time.Duration
}

func (b FixedBackoff) Delay(failed int) time.Duration {
	if failed <= 0 {
		return 0
	}
	return b.Interval
}

// Wait blocks for d or until ctx is done. A non-positive d only reports
// whether ctx is already done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
