// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	RetryBaseDelay = 1 * time.Millisecond
	BackoffBase = 1 * time.Millisecond
}

// scripted serves the given statuses in order, repeating the last one.
func scripted(t *testing.T, statuses ...int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		if n > len(statuses) {
			n = len(statuses)
		}
		w.WriteHeader(statuses[n-1])
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func TestDoWithRetry(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []int
		maxRetries int
		wantStatus int
		wantCalls  int32
	}{
		{name: "immediate success", statuses: []int{200}, maxRetries: 5, wantStatus: 200, wantCalls: 1},
		{name: "rate limited then ok", statuses: []int{429, 429, 200}, maxRetries: 5, wantStatus: 200, wantCalls: 3},
		{name: "model overloaded then ok", statuses: []int{StatusOverloaded, 200}, maxRetries: 5, wantStatus: 200, wantCalls: 2},
		{name: "unavailable then ok", statuses: []int{503, 200}, maxRetries: 5, wantStatus: 200, wantCalls: 2},
		{name: "retries exhausted", statuses: []int{429}, maxRetries: 3, wantStatus: 429, wantCalls: 4},
		{name: "default retry budget", statuses: []int{StatusOverloaded}, maxRetries: 0, wantStatus: StatusOverloaded, wantCalls: 1 + defaultMaxRetries},
		{name: "server error not retried", statuses: []int{500}, maxRetries: 5, wantStatus: 500, wantCalls: 1},
		{name: "not found not retried", statuses: []int{404}, maxRetries: 5, wantStatus: 404, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, calls := scripted(t, tt.statuses...)
			req, err := http.NewRequest(http.MethodPost, ts.URL, nil)
			require.NoError(t, err)

			resp, err := DoWithRetry(context.Background(), ts.Client(), req, tt.maxRetries)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(calls))
		})
	}
}

func TestDoWithRetry_ContextCancelled(t *testing.T) {
	ts, _ := scripted(t, http.StatusTooManyRequests)

	old := RetryBaseDelay
	RetryBaseDelay = 500 * time.Millisecond
	defer func() { RetryBaseDelay = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)

	_, err = DoWithRetry(ctx, ts.Client(), req, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetry(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		attempts  int
		failFirst int
		wantCalls int
		wantErr   bool
	}{
		{name: "first call succeeds", attempts: 3, failFirst: 0, wantCalls: 1},
		{name: "succeeds on last attempt", attempts: 3, failFirst: 2, wantCalls: 3},
		{name: "exhausted", attempts: 3, failFirst: 10, wantCalls: 3, wantErr: true},
		{name: "zero attempts means one", attempts: 0, failFirst: 10, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), tt.attempts, func(context.Context) error {
				calls++
				if calls <= tt.failFirst {
					return errBoom
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errBoom)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	old := BackoffBase
	BackoffBase = 500 * time.Millisecond
	defer func() { BackoffBase = old }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	err := Retry(ctx, 3, func(context.Context) error {
		calls++
		return errors.New("unreachable")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestBackoffCapped(t *testing.T) {
	old := RetryMaxDelay
	RetryMaxDelay = 10 * time.Second
	defer func() { RetryMaxDelay = old }()

	assert.Equal(t, 2*time.Second, backoff(2*time.Second, 0))
	assert.Equal(t, 8*time.Second, backoff(2*time.Second, 2))
	assert.Equal(t, 10*time.Second, backoff(2*time.Second, 6))
}

func TestThrottle_FirstCallDoesNotWait(t *testing.T) {
	th := NewThrottle(time.Hour)
	start := time.Now()
	require.NoError(t, th.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestThrottle_SpacesConsecutiveCalls(t *testing.T) {
	th := NewThrottle(30 * time.Millisecond)
	require.NoError(t, th.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, th.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestThrottle_ContextCancelled(t *testing.T) {
	th := NewThrottle(time.Hour)
	require.NoError(t, th.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, th.Wait(ctx), context.Canceled)
}

func TestThrottle_NilAndZeroNeverWait(t *testing.T) {
	var nilThrottle *Throttle
	assert.NoError(t, nilThrottle.Wait(context.Background()))

	zero := NewThrottle(0)
	assert.NoError(t, zero.Wait(context.Background()))
	assert.NoError(t, zero.Wait(context.Background()))
}

func TestDoWithRetry_ReplaysBody(t *testing.T) {
	var bodies []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(`{"q":1}`))
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), ts.Client(), req, 3)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, []string{`{"q":1}`, `{"q":1}`}, bodies)
}
