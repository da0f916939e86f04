package notifyclient

import (
	"time"

	"github.com/jpillora/backoff"
)

// DefaultReconnectDelay is the fixed wait between reconnect attempts.
const DefaultReconnectDelay = 3 * time.Second

// Backoff decides how long to wait before the next reconnect attempt.
// *backoff.Backoff from github.com/jpillora/backoff satisfies it.
type Backoff interface {
	Duration() time.Duration
	Reset()
}

// FixedBackoff always waits the same delay.
type FixedBackoff struct {
	Delay time.Duration
}

func (f FixedBackoff) Duration() time.Duration { return f.Delay }

func (FixedBackoff) Reset() {}

// ExponentialBackoff doubles the delay after each failed attempt up to maxDelay,
// with jitter. It resets once a stream handshake succeeds.
func ExponentialBackoff(minDelay, maxDelay time.Duration) Backoff {
	return &backoff.Backoff{
		Min:    minDelay,
		Max:    maxDelay,
		Factor: 2,
		Jitter: true,
	}
}
