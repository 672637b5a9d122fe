// Package ratelimit provides the process-wide gate for external AI calls.
//
// Every embedding, generation and cloud extraction request goes through one
// Gate. The gate allows a single call in flight and spaces call starts by a
// minimum interval (4s by default):
//
//	gate := ratelimit.New(ratelimit.DefaultMinSpacing)
//	err := gate.Do(ctx, func(ctx context.Context) error {
//	    return client.Call(ctx)
//	})
//
// Waiting for the gate honours ctx cancellation.
package ratelimit
