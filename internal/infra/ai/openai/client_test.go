package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/aml-analyser/internal/domain/ai"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewClientWithConfig(cfg, "")
}

func sampleRequest() ai.Request {
	return ai.Request{
		Model:      "gpt-4o",
		JSONOutput: true,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: "system text"},
			{Role: ai.RoleUser, Content: "user text"},
		},
	}
}

func TestClient_Generate(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`))
	})

	out, err := c.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	assert.Equal(t, "gpt-4o", body["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
	assert.EqualValues(t, maxTokens, body["max_tokens"])
	temp, ok := body["temperature"].(float64)
	require.True(t, ok, "temperature must be sent so decoding stays greedy")
	assert.Less(t, temp, 1e-30)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user text", msgs[1].(map[string]any)["content"])
}

func TestClient_GenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   error
	}{
		{"quota", http.StatusTooManyRequests, ai.ErrQuotaExceeded},
		{"unauthorized", http.StatusUnauthorized, ai.ErrUnauthenticated},
		{"bad request", http.StatusBadRequest, ai.ErrInvalidRequest},
		{"server error", http.StatusInternalServerError, ai.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error","code":"x"}}`))
			})

			_, err := c.Generate(context.Background(), sampleRequest())
			assert.ErrorIs(t, err, tt.kind)

			var rerr *ai.RemoteError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.status, rerr.StatusCode)
			assert.Equal(t, "openai", rerr.Provider)
		})
	}
}

func TestClient_EmptyChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	})
	_, err := c.Generate(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ai.ErrEmptyResponse)
}

func TestIsReasoningModel(t *testing.T) {
	for _, m := range []string{"o1-mini", "o3", "o4-mini", "gpt-5"} {
		assert.True(t, isReasoningModel(m), m)
	}
	for _, m := range []string{"gpt-4o", "gpt-4.1-mini", ""} {
		assert.False(t, isReasoningModel(m), m)
	}
}
