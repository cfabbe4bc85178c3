// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

// --- scripted client ---

type scriptedClient struct {
	replies []string
	errs    []error
	prompts []Request
}

func (s *scriptedClient) Complete(_ context.Context, r Request) (Response, error) {
	s.prompts = append(s.prompts, r)
	i := len(s.prompts) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return Response{}, s.errs[i]
	}
	if i >= len(s.replies) {
		return Response{}, fmt.Errorf("unexpected call %d", i+1)
	}
	return Response{Text: s.replies[i], InputTokens: 10, OutputTokens: 5}, nil
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    payload
		wantErr bool
	}{
		{name: "raw", in: `{"name":"a","count":1}`, want: payload{"a", 1}},
		{name: "padded", in: "\n  {\"name\":\"a\",\"count\":1}\n", want: payload{"a", 1}},
		{name: "json fence", in: "Here you go:\n```json\n{\"name\":\"b\",\"count\":2}\n```", want: payload{"b", 2}},
		{name: "bare fence", in: "```\n{\"name\":\"c\",\"count\":3}\n```", want: payload{"c", 3}},
		{name: "prose around braces", in: "Sure! {\"name\":\"d\",\"count\":4} Hope it helps.", want: payload{"d", 4}},
		{name: "empty", in: "   ", wantErr: true},
		{name: "truncated", in: `{"name":"a","count":`, wantErr: true},
		{name: "not json", in: "I cannot rank these papers.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSON[payload](tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrParse)
				assert.NotErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 10))
	assert.Equal(t, "abc...", Excerpt("abcdef", 3))
	// "é" is two bytes; cutting inside it backs up to the rune start.
	assert.Equal(t, "a...", Excerpt("aé", 2))
}

func validPayload(p payload) error {
	if p.Count <= 0 {
		return Invalidf("count %d must be positive", p.Count)
	}
	return nil
}

func stricter(r Request, prev error) (Request, error) {
	r.Prompt += "\nPrevious error: " + prev.Error()
	return r, nil
}

func TestCompleteJSONFirstTry(t *testing.T) {
	c := &scriptedClient{replies: []string{`{"name":"a","count":1}`}}
	res, err := CompleteJSON(context.Background(), c, Request{Prompt: "p"}, validPayload, stricter)
	require.NoError(t, err)
	assert.Equal(t, payload{"a", 1}, res.Value)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 10, res.InputTokens)
	assert.Len(t, c.prompts, 1)
}

func TestCompleteJSONRetriesOnceAfterParseFailure(t *testing.T) {
	c := &scriptedClient{replies: []string{"not json", `{"name":"a","count":1}`}}
	res, err := CompleteJSON(context.Background(), c, Request{Prompt: "p"}, validPayload, stricter)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 20, res.InputTokens)
	require.Len(t, c.prompts, 2)
	assert.Contains(t, c.prompts[1].Prompt, "Previous error: "+ErrParse.Error())
}

func TestCompleteJSONValidationFailureIsDistinct(t *testing.T) {
	c := &scriptedClient{replies: []string{`{"name":"a","count":0}`, `{"name":"a","count":-1}`}}
	res, err := CompleteJSON(context.Background(), c, Request{Prompt: "p"}, validPayload, stricter)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.NotErrorIs(t, err, ErrParse)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, c.prompts, 2)
}

func TestCompleteJSONPlainValidatorErrorIsInvalid(t *testing.T) {
	c := &scriptedClient{replies: []string{`{}`, `{}`}}
	_, err := CompleteJSON(context.Background(), c, Request{}, func(payload) error { return errors.New("missing name") }, nil)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCompleteJSONTransportErrorNotRetried(t *testing.T) {
	apiErr := &APIError{Provider: types.ProviderClaude, Status: 500, Err: errors.New("boom")}
	c := &scriptedClient{errs: []error{apiErr}}
	res, err := CompleteJSON(context.Background(), c, Request{}, validPayload, stricter)
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*APIError))
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, types.ClassUpstreamFetch, types.Classify(err))
}

func TestCompleteJSONEmptyResponsesExhaustAsParseFailure(t *testing.T) {
	empty := fmt.Errorf("%w: no text content", ErrEmpty)
	c := &scriptedClient{errs: []error{empty, empty}}
	res, err := CompleteJSON(context.Background(), c, Request{Prompt: "p"}, validPayload, stricter)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, c.prompts, 2)
}

func TestCompleteJSONStricterErrorEndsCall(t *testing.T) {
	errRender := errors.New("rendering correction")
	c := &scriptedClient{replies: []string{"not json", `{"name":"a","count":1}`}}
	res, err := CompleteJSON(context.Background(), c, Request{}, validPayload, func(r Request, _ error) (Request, error) {
		return r, errRender
	})
	assert.ErrorIs(t, err, errRender)
	assert.Equal(t, 1, res.Attempts)
	assert.Len(t, c.prompts, 1)
}

func withClaudeServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(h)
	old := claudeAPIURL
	claudeAPIURL = ts.URL
	t.Cleanup(func() {
		claudeAPIURL = old
		ts.Close()
	})
	return ts
}

func TestClaudeClientComplete(t *testing.T) {
	var got claudeRequest
	ts := withClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"content":[{"type":"text","text":"{\"ok\":"},{"type":"text","text":"true}"}],"usage":{"input_tokens":120,"output_tokens":30}}`)
	})

	c := &ClaudeClient{APIKey: "test-key", Model: "claude-test", Client: ts.Client()}
	resp, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "hello", Temperature: 0.3, MaxTokens: 512})
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, resp.Text)
	assert.Equal(t, 120, resp.InputTokens)
	assert.Equal(t, 30, resp.OutputTokens)

	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, 512, got.MaxTokens)
	assert.Equal(t, "sys", got.System)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.3, *got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[0].Content)
}

func TestClaudeClientRetriesOverloaded(t *testing.T) {
	var calls int32
	ts := withClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body claudeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(httputil.StatusOverloaded)
			return
		}
		fmt.Fprint(w, `{"content":[{"type":"text","text":"done"}]}`)
	})

	c := &ClaudeClient{APIKey: "k", Model: "m", MaxRetries: 5, Client: ts.Client()}
	resp, err := c.Complete(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClaudeClientErrorStatus(t *testing.T) {
	ts := withClaudeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"type":"authentication_error"}}`)
	})

	c := &ClaudeClient{APIKey: "bad", Model: "m", Client: ts.Client()}
	_, err := c.Complete(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.True(t, strings.Contains(err.Error(), "authentication_error"))
}

func TestClaudeClientEmptyContent(t *testing.T) {
	ts := withClaudeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"content":[]}`)
	})

	c := &ClaudeClient{APIKey: "k", Model: "m", Client: ts.Client()}
	_, err := c.Complete(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestCompleteJSONRetriesAfterEmptyClaudeResponse(t *testing.T) {
	var calls int32
	ts := withClaudeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			fmt.Fprint(w, `{"content":[],"usage":{"input_tokens":7,"output_tokens":0}}`)
			return
		}
		fmt.Fprint(w, `{"content":[{"type":"text","text":"{\"name\":\"a\",\"count\":2}"}],"usage":{"input_tokens":9,"output_tokens":4}}`)
	})

	c := &ClaudeClient{APIKey: "k", Model: "m", Client: ts.Client()}
	res, err := CompleteJSON(context.Background(), c, Request{Prompt: "p"}, validPayload, stricter)
	require.NoError(t, err)
	assert.Equal(t, payload{"a", 2}, res.Value)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGenerateConfig(t *testing.T) {
	cfg := generateConfig(Request{System: "sys", Temperature: 0.5, MaxTokens: 2048})
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.5, *cfg.Temperature, 1e-6)
	assert.Equal(t, int32(2048), cfg.MaxOutputTokens)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "sys", cfg.SystemInstruction.Parts[0].Text)

	bare := generateConfig(Request{})
	assert.Nil(t, bare.SystemInstruction)
	assert.Zero(t, bare.MaxOutputTokens)
}

func TestNew(t *testing.T) {
	_, err := New(context.Background(), types.AIConfig{Provider: types.ProviderClaude})
	assert.Error(t, err, "missing key")

	c, err := New(context.Background(), types.AIConfig{Provider: types.ProviderClaude, APIKey: "k", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &ClaudeClient{}, c)

	_, err = New(context.Background(), types.AIConfig{Provider: "mystery", APIKey: "k"})
	assert.Error(t, err)
}
