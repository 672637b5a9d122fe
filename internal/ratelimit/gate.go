package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinSpacing is the minimum time between the starts of two external calls
const DefaultMinSpacing = 4 * time.Second

// Gate serializes every outbound AI call in the process and enforces a
// minimum spacing between call starts. Build one per process and pass it to
// every component that calls out.
type Gate struct {
	slot    chan struct{} // single-flight token
	limiter *rate.Limiter // spacing between starts
	spacing time.Duration

	mu       sync.Mutex
	lastCall time.Time
	calls    int64
}

// New creates a gate with the given minimum spacing. A spacing <= 0 disables
// the spacing but keeps single-flight.
func New(spacing time.Duration) *Gate {
	limit := rate.Inf
	if spacing > 0 {
		limit = rate.Every(spacing)
	}
	return &Gate{
		slot:    make(chan struct{}, 1),
		limiter: rate.NewLimiter(limit, 1),
		spacing: spacing,
	}
}

// Do runs fn while holding the gate. It blocks until no other call is in
// flight and the spacing since the previous start has elapsed, or until ctx
// is done.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.slot }()

	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	g.mu.Lock()
	g.lastCall = time.Now()
	g.calls++
	g.mu.Unlock()

	return fn(ctx)
}

// Call is the value-returning form of Gate.Do.
func Call[T any](ctx context.Context, g *Gate, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// LastCall returns the start time of the most recent call, zero if none.
func (g *Gate) LastCall() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastCall
}

// Calls returns how many calls have passed through the gate.
func (g *Gate) Calls() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Spacing returns the configured minimum spacing.
func (g *Gate) Spacing() time.Duration {
	return g.spacing
}
