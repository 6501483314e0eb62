package tracker

import (
	"context"
	"time"

	"github.com/tyburd/mangabot/internal/transport"
)

// Backoff controls the retries of transient source failures
type Backoff struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultBackoff doubles from one second up to 32 seconds
var DefaultBackoff = Backoff{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 32 * time.Second}

// do runs fn until it succeeds, fails permanently or the retries run out.
// Only transient transport failures are retried.
func (b Backoff) do(ctx context.Context, fn func() error) error {
	delay := b.InitialDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || attempt >= b.MaxRetries || !transport.IsTransient(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		delay = min(delay*2, b.MaxDelay)
	}
}
