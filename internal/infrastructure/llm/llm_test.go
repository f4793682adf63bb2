package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperDigest/internal/ports"
	"PaperDigest/internal/retry"
)

const chatCompletionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1731000000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": "  Problem: slow attention.\nMethod: sparsity.  "},
    "finish_reason": "stop"
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

const anthropicMessageBody = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-haiku-4-5",
  "content": [
    {"type": "text", "text": "Problem: slow attention."},
    {"type": "text", "text": "Method: sparsity."}
  ],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 10, "output_tokens": 5}
}`

func request() ports.CompletionRequest {
	return ports.CompletionRequest{System: "be brief", Prompt: "Title: x", MaxTokens: 256}
}

func TestOpenAIClientComplete(t *testing.T) {
	t.Parallel()

	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody))
	}))
	defer server.Close()

	c := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1/", Temperature: 0.3})
	text, err := c.Complete(context.Background(), request())

	require.NoError(t, err)
	assert.Equal(t, "Problem: slow attention.\nMethod: sparsity.", text)
	assert.Equal(t, DefaultOpenAIModel, body["model"])
	assert.EqualValues(t, 256, body["max_completion_tokens"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIClientClassifiesStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusInternalServerError, true},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusBadRequest, false},
	}

	for _, tc := range cases {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
		}))

		c := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1/"})
		_, err := c.Complete(context.Background(), request())
		server.Close()

		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.transient, retry.IsTransient(err), "status %d", tc.status)
		assert.EqualValues(t, 1, calls.Load(), "sdk retried status %d", tc.status)
	}
}

func TestOpenAIClientTransportErrorIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL + "/v1/"
	server.Close()

	_, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: base}).Complete(context.Background(), request())

	require.Error(t, err)
	assert.True(t, retry.IsTransient(err))
}

func TestAnthropicClientComplete(t *testing.T) {
	t.Parallel()

	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(anthropicMessageBody))
	}))
	defer server.Close()

	c := NewAnthropicClient(AnthropicConfig{APIKey: "sk-ant", BaseURL: server.URL + "/"})
	text, err := c.Complete(context.Background(), request())

	require.NoError(t, err)
	assert.Equal(t, "Problem: slow attention.\nMethod: sparsity.", text)
	assert.Equal(t, DefaultAnthropicModel, body["model"])
	assert.EqualValues(t, 256, body["max_tokens"])
	assert.NotNil(t, body["system"])
}

func TestAnthropicClientClassifiesStatus(t *testing.T) {
	t.Parallel()

	for status, transient := range map[int]bool{
		http.StatusTooManyRequests: true,
		529:                        true,
		http.StatusUnauthorized:    false,
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`))
		}))

		c := NewAnthropicClient(AnthropicConfig{APIKey: "sk-ant", BaseURL: server.URL + "/"})
		_, err := c.Complete(context.Background(), request())
		server.Close()

		require.Error(t, err, "status %d", status)
		assert.Equal(t, transient, retry.IsTransient(err), "status %d", status)
	}
}

func TestClassifyTransport(t *testing.T) {
	t.Parallel()

	assert.False(t, retry.IsTransient(classifyTransport(context.Canceled)))
	assert.True(t, retry.IsTransient(classifyTransport(errors.New("connection reset by peer"))))
	assert.False(t, retry.IsTransient(classifyStatus(http.StatusNotFound, errors.New("missing"))))
}
