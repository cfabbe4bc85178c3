// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
)

// contractAttempts is the initial request plus one stricter retry.
const contractAttempts = 2

// Result is a parsed and validated structured response.
type Result[T any] struct {
	Value        T
	Attempts     int
	InputTokens  int
	OutputTokens int
}

// CompleteJSON asks for a structured value, parses it, and validates it as
// a separate step. A parse or validation failure re-issues the request once,
// reformulated by stricter with the previous error; an error from stricter
// ends the call. An empty response counts
// as a parse failure; other transport errors are returned immediately. The returned error after two bad responses wraps
// ErrParse or ErrInvalid from the last attempt.
func CompleteJSON[T any](ctx context.Context, c Client, req Request, validate func(T) error, stricter func(Request, error) (Request, error)) (Result[T], error) {
	var res Result[T]
	var lastErr error

	for attempt := 1; attempt <= contractAttempts; attempt++ {
		if attempt > 1 && stricter != nil {
			next, err := stricter(req, lastErr)
			if err != nil {
				return res, err
			}
			req = next
		}
		res.Attempts = attempt

		resp, err := c.Complete(ctx, req)
		res.InputTokens += resp.InputTokens
		res.OutputTokens += resp.OutputTokens
		if errors.Is(err, ErrEmpty) {
			lastErr = errors.Join(ErrParse, err)
			continue
		}
		if err != nil {
			return res, err
		}

		value, err := ParseJSON[T](resp.Text)
		if err == nil && validate != nil {
			err = validate(value)
			if err != nil && !errors.Is(err, ErrInvalid) {
				err = errors.Join(ErrInvalid, err)
			}
		}
		if err == nil {
			res.Value = value
			return res, nil
		}
		lastErr = err
	}
	return res, lastErr
}
