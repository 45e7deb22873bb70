package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"PORT", "CORS_ALLOWED_ORIGINS", "SHUTDOWN_TIMEOUT",
	"LLM_PROVIDER", "LLM_API_KEY", "OPENAI_API_KEY", "GROQ_API_KEY", "GEMINI_API_KEY",
	"LLM_BASE_URL", "LLM_MODEL", "LLM_TEMPERATURE", "LLM_MAX_TOKENS", "LLM_MAX_PROMPT_TOKENS",
	"LLM_MAX_ATTEMPTS", "LLM_BASE_DELAY", "LLM_TIMEOUT", "LLM_RATE_LIMIT_RPS",
	"HISTORY_BACKEND", "HISTORY_PATH", "PROMPTS_FILE", "LOG_LEVEL", "LOG_FORMAT",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
}

// clearEnv はテスト中だけ関連する環境変数を空にする
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Empty(t, cfg.LLM.APIKey)
	assert.False(t, cfg.UpstreamConfigured())
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Retry.AttemptTimeout)
	assert.Equal(t, HistoryBackendFile, cfg.History.Backend)
	assert.Equal(t, "history.json", cfg.History.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ProviderAPIKeyFallback(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		provider string
		wantKey  string
	}{
		{
			name:     "openaiはOPENAI_API_KEYを使う",
			env:      map[string]string{"OPENAI_API_KEY": "sk-openai"},
			provider: ProviderOpenAI,
			wantKey:  "sk-openai",
		},
		{
			name:     "groqはGROQ_API_KEYを使う",
			env:      map[string]string{"LLM_PROVIDER": "groq", "GROQ_API_KEY": "gsk-groq", "OPENAI_API_KEY": "sk-openai"},
			provider: ProviderGroq,
			wantKey:  "gsk-groq",
		},
		{
			name:     "geminiはGEMINI_API_KEYを使う",
			env:      map[string]string{"LLM_PROVIDER": "Gemini", "GEMINI_API_KEY": "gem-key"},
			provider: ProviderGemini,
			wantKey:  "gem-key",
		},
		{
			name:     "LLM_API_KEYが優先される",
			env:      map[string]string{"LLM_API_KEY": "explicit", "OPENAI_API_KEY": "sk-openai"},
			provider: ProviderOpenAI,
			wantKey:  "explicit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tt.provider, cfg.LLM.Provider)
			assert.Equal(t, tt.wantKey, cfg.LLM.APIKey)
			assert.True(t, cfg.UpstreamConfigured())
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"PORT=9090\n"+
			"LLM_BASE_DELAY=250ms\n"+
			"LLM_TIMEOUT=5\n"+
			"HISTORY_BACKEND=journal\n"+
			"HISTORY_PATH=/tmp/history.jsonl\n"+
			"CORS_ALLOWED_ORIGINS=http://localhost:3000, https://patent.example.com\n",
	), 0o644))

	// godotenv.Load は既存の環境変数を上書きしないため、空のままだと読み込まれない
	for _, key := range []string{"PORT", "LLM_BASE_DELAY", "LLM_TIMEOUT", "HISTORY_BACKEND", "HISTORY_PATH", "CORS_ALLOWED_ORIGINS"} {
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 5*time.Second, cfg.Retry.AttemptTimeout)
	assert.Equal(t, HistoryBackendJournal, cfg.History.Backend)
	assert.Equal(t, "/tmp/history.jsonl", cfg.History.Path)
	assert.Equal(t, []string{"http://localhost:3000", "https://patent.example.com"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoad_MissingEnvFileIsNotAnError(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	assert.NoError(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "未知のプロバイダ", env: map[string]string{"LLM_PROVIDER": "anthropic"}, wantErr: "LLM_PROVIDER"},
		{name: "温度が範囲外", env: map[string]string{"LLM_TEMPERATURE": "1.5"}, wantErr: "LLM_TEMPERATURE"},
		{name: "試行回数が0", env: map[string]string{"LLM_MAX_ATTEMPTS": "0"}, wantErr: "LLM_MAX_ATTEMPTS"},
		{name: "未知の履歴バックエンド", env: map[string]string{"HISTORY_BACKEND": "redis"}, wantErr: "HISTORY_BACKEND"},
		{name: "ポートが範囲外", env: map[string]string{"PORT": "70000"}, wantErr: "PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
