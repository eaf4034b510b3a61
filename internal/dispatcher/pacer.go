package dispatcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out mail sends and holds them back after the service throttles us.
type Pacer struct {
	// main limiter; rate.Inf when pacing is disabled
	limiter *rate.Limiter

	// set from Retry-After on a throttled send
	pausedUntil time.Time
	mu          sync.Mutex
}

// NewPacer creates a pacer allowing sendsPerSecond sends (burst 1).
// Zero or negative disables pacing; Pause still applies.
func NewPacer(sendsPerSecond float64) *Pacer {
	limit := rate.Inf
	if sendsPerSecond > 0 {
		limit = rate.Limit(sendsPerSecond)
	}
	return &Pacer{
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Wait blocks until the next send is allowed.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	until := p.pausedUntil
	p.mu.Unlock()

	if d := time.Until(until); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return p.limiter.Wait(ctx)
}

// Pause holds back the next send for d. A shorter pause never shortens an active one.
func (p *Pacer) Pause(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if until := time.Now().Add(d); until.After(p.pausedUntil) {
		p.pausedUntil = until
	}
}
