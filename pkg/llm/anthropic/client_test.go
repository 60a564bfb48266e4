package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/healthchat/pkg/llm"
	"github.com/run-bigpig/healthchat/pkg/retry"
)

var conversation = []llm.Message{
	{Role: llm.RoleSystem, Content: "You are a health assistant."},
	{Role: llm.RoleUser, Content: "What helps a sore throat?"},
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, apiVersion, r.Header.Get("Anthropic-Version"))

		var req CompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "You are a health assistant.", req.System)
		assert.Equal(t, []Message{{Role: "user", Content: "What helps a sore throat?"}}, req.Messages)
		assert.Equal(t, 500, req.MaxTokens)
		assert.False(t, req.Stream)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(CompletionResponse{
			Role:    "assistant",
			Content: []ContentBlock{{Type: "text", Text: "Warm fluids and rest."}},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	resp, err := client.Generate(context.Background(), conversation, llm.DefaultGenerateParams())
	require.NoError(t, err)
	assert.Equal(t, "Warm fluids and rest.", resp)
}

func TestGenerateStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req CompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		for _, part := range []string{"Warm ", "fluids."} {
			fmt.Fprintf(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":%q}}\n\n", part)
		}
		fmt.Fprint(w, "event: ping\ndata: {\"type\":\"ping\"}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	var fragments []string
	for fragment, err := range client.GenerateStream(context.Background(), conversation, nil) {
		require.NoError(t, err)
		fragments = append(fragments, fragment)
	}
	assert.Equal(t, []string{"Warm ", "fluids."}, fragments)
}

func TestGenerateStreamErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Par\"}}\n\n")
		fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	var text string
	var streamErr error
	for fragment, err := range client.GenerateStream(context.Background(), conversation, nil) {
		if err != nil {
			streamErr = err
			break
		}
		text += fragment
	}

	assert.Equal(t, "Par", text)
	var ce *llm.ClientError
	require.True(t, errors.As(streamErr, &ce))
	assert.Contains(t, ce.Error(), "overloaded_error")
}

func TestGenerateStatusErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	defer server.Close()

	client := NewClient("test-key",
		WithBaseURL(server.URL),
		WithRetry(retry.WithInitialInterval(time.Millisecond), retry.WithMaxAttempts(3)),
	)

	_, err := client.Generate(context.Background(), conversation, nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.True(t, llm.IsTransportError(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateRetriesOverload(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(529)
			return
		}
		json.NewEncoder(w).Encode(CompletionResponse{Content: []ContentBlock{{Type: "text", Text: "ok"}}})
	}))
	defer server.Close()

	client := NewClient("test-key",
		WithBaseURL(server.URL),
		WithRetry(retry.WithInitialInterval(time.Millisecond), retry.WithMaxAttempts(3)),
	)

	resp, err := client.Generate(context.Background(), conversation, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNotConfigured(t *testing.T) {
	client := NewClient("")
	assert.False(t, client.IsAvailable())
	assert.Equal(t, "anthropic", client.Name())

	_, err := client.Generate(context.Background(), conversation, nil)
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}
