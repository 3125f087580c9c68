// Package retry provides a backoff retry helper for read-path exchange calls.
// Write operations (order submission, cancellation) must not go through this
// helper: retrying them risks duplicate order submission.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy bounds retry attempts and the backoff between them.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy suits balance and price reads.
var DefaultPolicy = Policy{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// IsTransientFunc reports whether an error is worth retrying.
type IsTransientFunc func(error) bool

// Do runs fn up to MaxAttempts times, sleeping a jittered exponential backoff
// between attempts. Non-transient errors and context cancellation return
// immediately; otherwise the last error is returned.
func Do(ctx context.Context, policy Policy, isTransient IsTransientFunc, fn func() error) error {
	backoff := policy.InitialBackoff
	var err error

	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil || !isTransient(err) {
			return err
		}
		if attempt >= policy.MaxAttempts {
			return err
		}

		sleep := backoff
		if half := int64(backoff / 2); half > 0 {
			sleep += time.Duration(rand.Int63n(half))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		backoff = min(backoff*2, policy.MaxBackoff)
	}
}
