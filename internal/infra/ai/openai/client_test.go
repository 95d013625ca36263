package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
}

func chatReply(w http.ResponseWriter, choices string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":` + choices + `}`))
}

func TestAnalyze_RequestShape(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		chatReply(w, `[{"index":0,"message":{"role":"assistant","content":"# Report"}}]`)
	})

	out, err := c.Analyze(context.Background(), review.AnalysisRequest{InstructionPrompt: "rubric", UserContent: "payload"})
	require.NoError(t, err)
	assert.Equal(t, "# Report", out)

	assert.Equal(t, DefaultModel, body["model"])
	assert.InDelta(t, 0.3, body["temperature"], 0.0001)
	assert.EqualValues(t, 4000, body["max_tokens"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "rubric", msgs[0].(map[string]any)["content"])
	assert.Equal(t, "Please analyze this Form APR document for FEMA compliance:\n\npayload", msgs[1].(map[string]any)["content"])
}

func TestAnalyze_ZeroTemperatureIsSent(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		chatReply(w, `[{"index":0,"message":{"role":"assistant","content":"ok"}}]`)
	}))
	defer srv.Close()

	zero := float32(0)
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Temperature: &zero}, nil)
	_, err := c.Analyze(context.Background(), review.AnalysisRequest{InstructionPrompt: "r", UserContent: "u"})
	require.NoError(t, err)

	require.Contains(t, body, "temperature")
	assert.InDelta(t, 0, body["temperature"], 1e-6)
}

func TestAnalyze_NoChoicesIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(w, `[]`)
	})
	_, err := c.Analyze(context.Background(), review.AnalysisRequest{})
	assert.ErrorIs(t, err, review.ErrNoChoices)
}

func TestAnalyze_EmptyContentFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(w, `[{"index":0,"message":{"role":"assistant","content":""}}]`)
	})
	out, err := c.Analyze(context.Background(), review.AnalysisRequest{})
	require.NoError(t, err)
	assert.Equal(t, EmptyContent, out)
}

func TestAnalyze_ProviderStatus(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusRequestEntityTooLarge} {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
		})
		_, err := c.Analyze(context.Background(), review.AnalysisRequest{})

		var pe *review.ProviderError
		require.True(t, errors.As(err, &pe), "status %d", code)
		assert.Equal(t, code, pe.HTTPStatus)
		assert.Equal(t, "nope", pe.Message)
		assert.EqualValues(t, 1, calls.Load(), "no retries")
	}
}
