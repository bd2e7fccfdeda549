package handler

import (
	"context"
	"time"

	"github.com/use-agent/mailscout/finder"
	"github.com/use-agent/mailscout/models"
)

// Limiter caps the number of concurrent lookups (one browser each) and
// bounds every lookup with a timeout that starts once a slot is held.
type Limiter struct {
	next    Looker
	slots   chan struct{}
	timeout time.Duration
}

// Limit wraps lk so that at most max lookups run at once. A timeout <= 0
// leaves lookups bounded only by the caller's context.
func Limit(lk Looker, max int, timeout time.Duration) *Limiter {
	if max <= 0 {
		max = 1
	}
	return &Limiter{next: lk, slots: make(chan struct{}, max), timeout: timeout}
}

// Lookup waits for a free slot, then runs the wrapped lookup.
func (l *Limiter) Lookup(ctx context.Context, domain string) (*finder.Result, error) {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, models.NewLookupError(models.ErrCodeTimeout, "no free browser slot", ctx.Err())
	}
	defer func() { <-l.slots }()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	return l.next.Lookup(ctx, domain)
}

// Active returns the number of lookups holding a slot.
func (l *Limiter) Active() int { return len(l.slots) }

// Max returns the slot count.
func (l *Limiter) Max() int { return cap(l.slots) }
