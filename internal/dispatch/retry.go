package dispatch

import "time"

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// RetryPolicy decides what happens after a dial attempt fails to reach the
// user. MaxRetries counts retries beyond the first attempt, so a policy of
// 3 allows 4 dials total.
type RetryPolicy struct {
	MaxRetries int
	Mode       string
	BaseDelay  time.Duration
}

type Decision struct {
	Retry bool
	Delay time.Duration
}

// Decide takes the attempt count as already incremented by the failed dial.
func (p RetryPolicy) Decide(attemptCount int) Decision {
	if attemptCount > p.MaxRetries {
		return Decision{}
	}
	return Decision{Retry: true, Delay: p.NextDelay(attemptCount)}
}

// NextDelay returns the wait before retry number attemptCount+1.
// Exponential doubling is capped at 12 steps to keep the arithmetic from
// overflowing on misconfigured counts.
func (p RetryPolicy) NextDelay(attemptCount int) time.Duration {
	if p.Mode != BackoffExponential {
		return p.BaseDelay
	}
	d := p.BaseDelay
	steps := attemptCount - 1
	if steps > 12 {
		steps = 12
	}
	for i := 0; i < steps; i++ {
		d *= 2
	}
	return d
}
