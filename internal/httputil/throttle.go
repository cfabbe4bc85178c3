// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"time"
)

// Throttle enforces a minimum delay between consecutive external fetches,
// regardless of which caller triggers them. The zero value never waits.
// A Throttle is not safe for concurrent use; the pipeline is sequential.
type Throttle struct {
	delay time.Duration
	last  time.Time
	now   func() time.Time
}

// NewThrottle returns a throttle that spaces fetches at least delay apart.
func NewThrottle(delay time.Duration) *Throttle {
	return &Throttle{delay: delay, now: time.Now}
}

// Wait blocks until delay has elapsed since the previous Wait returned,
// then records the current time. The first call never blocks.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.delay <= 0 {
		return ctx.Err()
	}
	if t.now == nil {
		t.now = time.Now
	}
	if !t.last.IsZero() {
		if remaining := t.delay - t.now().Sub(t.last); remaining > 0 {
			if err := sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	t.last = t.now()
	return nil
}
