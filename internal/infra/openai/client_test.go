package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/MasterCoderKay/patent-ai/internal/core/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

func newUpstream(t *testing.T, handler func(w http.ResponseWriter, req chatRequest)) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
	t.Cleanup(srv.Close)

	return srv, &calls
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini-2024",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message": map[string]any{
				"role":    "assistant",
				"content": content,
			},
		}},
	})
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		apiKey    string
		model     string
		wantModel string
		wantErr   error
	}{
		{
			name:      "モデル省略時はデフォルトモデルを使う",
			apiKey:    "test-key",
			wantModel: DefaultModel,
		},
		{
			name:      "指定したモデルを使う",
			apiKey:    "test-key",
			model:     "gpt-4o",
			wantModel: "gpt-4o",
		},
		{
			name:    "APIキーが空の場合はエラー",
			wantErr: gateway.ErrAPIKeyNotSet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.apiKey, tt.model)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, client.ModelName())
		})
	}
}

func TestClient_SendWireFormat(t *testing.T) {
	srv, calls := newUpstream(t, func(w http.ResponseWriter, req chatRequest) {
		assert.Equal(t, "custom-model", req.Model)
		if !assert.Len(t, req.Messages, 2) {
			return
		}
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "You are a patent attorney.", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "A bicycle with square wheels.", req.Messages[1].Content)
		assert.InDelta(t, 0.3, req.Temperature, 1e-9)
		assert.Equal(t, 256, req.MaxTokens)

		writeCompletion(w, "1. A bicycle comprising square wheels.")
	})

	client, err := NewClient("test-key", "", WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	text, model, err := client.Send(context.Background(), gateway.CompletionRequest{
		SystemPrompt: "You are a patent attorney.",
		UserContent:  "A bicycle with square wheels.",
		Model:        "custom-model",
		Temperature:  gateway.Float(0.3),
		MaxTokens:    256,
	})
	require.NoError(t, err)
	assert.Equal(t, "1. A bicycle comprising square wheels.", text)
	assert.Equal(t, "gpt-4o-mini-2024", model)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_SendTranslatesStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "レート制限", status: http.StatusTooManyRequests},
		{name: "不正なリクエスト", status: http.StatusBadRequest},
		{name: "サーバエラー", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := newUpstream(t, func(w http.ResponseWriter, req chatRequest) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"upstream says no","type":"invalid_request_error"}}`))
			})

			client, err := NewClient("test-key", "m", WithBaseURL(srv.URL))
			require.NoError(t, err)

			_, _, err = client.Send(context.Background(), gateway.CompletionRequest{SystemPrompt: "s", UserContent: "u"})
			require.Error(t, err)

			var statusErr *gateway.StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode)

			// SDK 側ではリトライしない
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestClient_SendEmptyChoicesIsMalformed(t *testing.T) {
	srv, _ := newUpstream(t, func(w http.ResponseWriter, req chatRequest) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	})

	client, err := NewClient("test-key", "m", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, _, err = client.Send(context.Background(), gateway.CompletionRequest{SystemPrompt: "s", UserContent: "u"})
	assert.ErrorIs(t, err, gateway.ErrMalformedResponse)
}

func TestClient_ThroughGatewayExhaustsRetriesOn503(t *testing.T) {
	srv, calls := newUpstream(t, func(w http.ResponseWriter, req chatRequest) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	})

	client, err := NewClient("test-key", "m", WithBaseURL(srv.URL))
	require.NoError(t, err)

	gw := gateway.New(client, gateway.WithRetryPolicy(3, 0))
	_, err = gw.Complete(context.Background(), gateway.CompletionRequest{SystemPrompt: "s", UserContent: "u"})
	require.Error(t, err)

	svcErr, ok := gateway.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, gateway.KindUpstreamUnavailable, svcErr.Kind)
	assert.Equal(t, 3, svcErr.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}
