package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/logger"
)

// Backoff describes an exponential retry schedule. Zero fields take the
// defaults of DefaultBackoff.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Jitter   float64
}

var DefaultBackoff = Backoff{
	Attempts: 3,
	Initial:  100 * time.Millisecond,
	Max:      5 * time.Second,
	Jitter:   0.1,
}

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = DefaultBackoff.Attempts
	}
	if b.Initial <= 0 {
		b.Initial = DefaultBackoff.Initial
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoff.Max
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	return b
}

// Delay is the wait after the given failed attempt, counting from 1.
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.withDefaults()
	d := b.Initial << (attempt - 1)
	if d <= 0 || d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 {
		d += time.Duration(float64(d) * b.Jitter * rand.Float64())
	}
	return d
}

// Retry calls fn until it succeeds, the attempts run out, or ctx is done.
func Retry(ctx context.Context, name string, b Backoff, fn func() error) error {
	b = b.withDefaults()
	log := logger.WithComponent("retry").With("operation", name)
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				log.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if attempt == b.Attempts {
			return fmt.Errorf("%s failed after %d attempts: %w", name, attempt, err)
		}
		delay := b.Delay(attempt)
		log.Warn("attempt failed, retrying", "attempt", attempt, "error", err, "next_delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s aborted: %w", name, ctx.Err())
		}
	}
}
