// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages: response
// retries on rate limiting, bounded attempt loops with exponential backoff,
// and a fetch throttle.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// rate-limited responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 5 * time.Second

// RetryMaxDelay caps a single backoff wait.
var RetryMaxDelay = 60 * time.Second

const defaultMaxRetries = 5

// StatusOverloaded is the non-standard status some model APIs use when
// they are temporarily over capacity.
const StatusOverloaded = 529

// Retryable reports whether a response status is worth retrying after a wait.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == StatusOverloaded || status == http.StatusServiceUnavailable
}

// DoWithRetry executes an HTTP request and retries on 429, 503 and 529
// responses with exponential backoff. The delay starts at RetryBaseDelay
// and doubles each attempt, capped at RetryMaxDelay.
//
// When maxRetries is 0 the default (5) is used. On each retryable response
// the body is drained and closed before sleeping. Requests with a body are
// replayed through req.GetBody. If the context is cancelled
// during a backoff wait the function returns ctx.Err(). After exhausting
// retries the last response is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		r := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			r.Body = body
		}
		resp, err := client.Do(r)
		if err != nil {
			return nil, err
		}

		if !Retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		// Drain and close the body before retrying.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if err := sleep(ctx, backoff(RetryBaseDelay, attempt)); err != nil {
			return nil, err
		}
	}
}

// BackoffBase is the first wait of Retry. Tests override this.
var BackoffBase = 2 * time.Second

// Retry calls fn up to attempts times, sleeping BackoffBase, 2*BackoffBase,
// ... between failures. It returns nil on the first success, ctx.Err() if
// the context ends during a wait, or the last error wrapped with the
// attempt count.
func Retry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(BackoffBase, attempt-1)); err != nil {
				return err
			}
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func backoff(base time.Duration, attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * base
	if RetryMaxDelay > 0 && d > RetryMaxDelay {
		d = RetryMaxDelay
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
