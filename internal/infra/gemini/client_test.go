package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MasterCoderKay/patent-ai/internal/core/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresAPIKey(t *testing.T) {
	client, err := NewClient(context.Background(), "", "", "")
	assert.ErrorIs(t, err, gateway.ErrAPIKeyNotSet)
	assert.Nil(t, client)
}

func TestNewClient_DefaultModel(t *testing.T) {
	client, err := NewClient(context.Background(), "test-key", "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, client.ModelName())
}

func TestClient_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "systemInstruction")
		assert.Contains(t, body, "contents")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Novelty: 7/10"}]}}],
			"modelVersion": "gemini-test-001"
		}`))
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), "test-key", "gemini-test", srv.URL)
	require.NoError(t, err)

	text, model, err := client.Send(context.Background(), gateway.CompletionRequest{
		SystemPrompt: "You are a helpful patent analyst.",
		UserContent:  "Score the novelty of a solar-powered umbrella.",
		Temperature:  gateway.Float(0.5),
		MaxTokens:    100,
	})
	require.NoError(t, err)
	assert.Equal(t, "Novelty: 7/10", text)
	assert.Equal(t, "gemini-test-001", model)
}

func TestClient_SendTranslatesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), "test-key", "gemini-test", srv.URL)
	require.NoError(t, err)

	_, _, err = client.Send(context.Background(), gateway.CompletionRequest{SystemPrompt: "s", UserContent: "u"})
	require.Error(t, err)

	var statusErr *gateway.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
}
