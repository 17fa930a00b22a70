package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"medichat-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(content string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestChat(t *testing.T) {
	var gotReq groqChatRequest
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("  How long have you had the headache?  ")))
	}))
	defer server.Close()

	provider := NewGroqProvider(server.URL, "test-key", "llama-3.1-8b-instant")

	history := []llm.Message{
		{Role: "system", Content: "You are a doctor."},
		{Role: "user", Content: "My head hurts"},
	}

	reply, err := provider.Chat(context.Background(), history,
		llm.WithTemperature(0.8),
		llm.WithTopP(1),
		llm.WithMaxTokens(512),
	)
	require.NoError(t, err)

	// Reply is trimmed the way the upstream SDK consumers expect.
	assert.Equal(t, "How long have you had the headache?", reply)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "llama-3.1-8b-instant", gotReq.Model)
	assert.Equal(t, 0.8, gotReq.Temperature)
	assert.Equal(t, float64(1), gotReq.TopP)
	assert.Equal(t, 512, gotReq.MaxCompletionTokens)
	assert.False(t, gotReq.Stream)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "My head hurts", gotReq.Messages[1].Content)
}

func TestChatRetriesTransientFailures(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&hits, 1)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionBody("ok")))
	}))
	defer server.Close()

	provider := NewGroqProvider(server.URL, "test-key", "llama-3.1-8b-instant")
	provider.MaxRetries = 2

	reply, err := provider.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits))
}

func TestChatDoesNotRetryClientErrors(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad payload","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	provider := NewGroqProvider(server.URL, "test-key", "llama-3.1-8b-instant")

	_, err := provider.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestChatCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewGroqProvider(server.URL, "test-key", "llama-3.1-8b-instant")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Chat(ctx, []llm.Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
}
