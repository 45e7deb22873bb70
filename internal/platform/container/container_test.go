package container

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MasterCoderKay/patent-ai/internal/core/gateway"
	"github.com/MasterCoderKay/patent-ai/internal/core/history"
	"github.com/MasterCoderKay/patent-ai/internal/core/patent"
	"github.com/MasterCoderKay/patent-ai/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTransport struct{}

func (echoTransport) Send(ctx context.Context, req gateway.CompletionRequest) (string, string, error) {
	return " " + req.UserContent + " ", "echo-model", nil
}

type lenCounter struct{}

func (lenCounter) CountTokens(text string) int {
	return len(text)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Port: 8000},
		LLM: config.LLMConfig{
			Provider:        config.ProviderOpenAI,
			APIKey:          "sk-test",
			Temperature:     0.7,
			MaxTokens:       2000,
			MaxPromptTokens: 8000,
		},
		Retry: config.RetryConfig{
			MaxAttempts:    3,
			BaseDelay:      time.Millisecond,
			AttemptTimeout: time.Second,
		},
		History: config.HistoryConfig{
			Backend: config.HistoryBackendFile,
			Path:    filepath.Join(t.TempDir(), "history.json"),
		},
	}
}

func TestNew_WiresServiceEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	c, err := New(ctx, cfg,
		WithContainerTransport(echoTransport{}),
		WithContainerTokenCounter(lenCounter{}),
	)
	require.NoError(t, err)
	defer c.Close()

	out, err := c.Patent.Run(ctx, patent.TaskPolish, patent.Input{Text: "a claim"})
	require.NoError(t, err)
	assert.Equal(t, "a claim", out.Text)
	assert.Equal(t, "echo-model", out.Model)

	// ファイルに永続化されている
	reloaded, err := history.NewFileStore(cfg.History.Path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []history.Entry{{Original: "a claim", Polished: "a claim"}}, reloaded)
}

func TestNew_MissingAPIKeyIsFatal(t *testing.T) {
	for _, provider := range []string{config.ProviderOpenAI, config.ProviderGroq, config.ProviderGemini} {
		t.Run(provider, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.LLM.Provider = provider
			cfg.LLM.APIKey = ""

			_, err := New(context.Background(), cfg, WithContainerTokenCounter(lenCounter{}))
			assert.ErrorIs(t, err, gateway.ErrAPIKeyNotSet)
		})
	}
}

func TestNew_WithoutUpstreamDoesNotNeedAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = ""
	cfg.History.Backend = config.HistoryBackendJournal

	c, err := New(context.Background(), cfg, WithoutUpstream())
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Gateway)
	assert.Nil(t, c.Patent)
	assert.IsType(t, &history.JournalStore{}, c.History)
}

func TestNew_MalformedHistoryFailsStartup(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.History.Path, []byte("{not json"), 0o644))

	_, err := New(context.Background(), cfg, WithContainerTransport(echoTransport{}), WithContainerTokenCounter(lenCounter{}))
	require.ErrorIs(t, err, history.ErrMalformedHistory)
	assert.Contains(t, err.Error(), cfg.History.Path)
}

func TestNew_ProviderDefaultModels(t *testing.T) {
	tests := []struct {
		provider  string
		model     string
		wantModel string
	}{
		{provider: config.ProviderOpenAI, wantModel: "gpt-4o-mini"},
		{provider: config.ProviderGroq, wantModel: "llama3-8b-8192"},
		{provider: config.ProviderGemini, wantModel: "gemini-2.0-flash"},
		{provider: config.ProviderGroq, model: "mixtral-8x7b-32768", wantModel: "mixtral-8x7b-32768"},
	}

	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.wantModel, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.LLM.Provider = tt.provider
			cfg.LLM.Model = tt.model
			cfg.History.Backend = config.HistoryBackendMemory

			c, err := New(context.Background(), cfg, WithContainerTokenCounter(lenCounter{}))
			require.NoError(t, err)
			defer c.Close()

			assert.Equal(t, tt.provider, c.Provider())
			assert.Equal(t, tt.wantModel, c.Model())
		})
	}
}

func TestNew_PromptsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.PromptsFile = filepath.Join(t.TempDir(), "prompts.toml")
	require.NoError(t, os.WriteFile(cfg.PromptsFile, []byte("[score]\nuser = \"Rate: {{.Text}}\"\n"), 0o644))

	c, err := New(context.Background(), cfg, WithContainerTransport(echoTransport{}), WithContainerTokenCounter(lenCounter{}))
	require.NoError(t, err)
	defer c.Close()

	out, err := c.Patent.Run(context.Background(), patent.TaskScore, patent.Input{Text: "drone"})
	require.NoError(t, err)
	assert.Equal(t, "Rate: drone", out.Text)
}
