package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LLMプロバイダ
const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// 履歴の保存先
const (
	HistoryBackendFile     = "file"
	HistoryBackendJournal  = "journal"
	HistoryBackendPostgres = "postgres"
	HistoryBackendMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// HTTPサーバ設定
	Server ServerConfig

	// 上流LLM設定
	LLM LLMConfig

	// リトライ設定
	Retry RetryConfig

	// 履歴ストア設定
	History HistoryConfig

	// Database設定 (HISTORY_BACKEND=postgres の場合のみ使用)
	Database DatabaseConfig

	// プロンプト上書き設定ファイル (TOML)
	PromptsFile string

	// ログ設定
	Log LogConfig
}

// ServerConfig はHTTPサーバ設定
type ServerConfig struct {
	Port               int
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
}

// LLMConfig は上流LLM設定
type LLMConfig struct {
	Provider        string // "openai", "groq" or "gemini"
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float64
	MaxTokens       int
	MaxPromptTokens int
}

// RetryConfig はGatewayのリトライ設定
type RetryConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
	RateLimitRPS   float64 // 0 の場合は無制限
}

// HistoryConfig は履歴ストア設定
type HistoryConfig struct {
	Backend string // "file", "journal", "postgres" or "memory"
	Path    string
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string
	Format string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	provider := strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnvAsInt("PORT", 8000),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			ShutdownTimeout:    getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		LLM: LLMConfig{
			Provider:        provider,
			APIKey:          getEnv("LLM_API_KEY", providerAPIKey(provider)),
			BaseURL:         getEnv("LLM_BASE_URL", ""),
			Model:           getEnv("LLM_MODEL", ""),
			Temperature:     getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:       getEnvAsInt("LLM_MAX_TOKENS", 2000),
			MaxPromptTokens: getEnvAsInt("LLM_MAX_PROMPT_TOKENS", 8000),
		},
		Retry: RetryConfig{
			MaxAttempts:    getEnvAsInt("LLM_MAX_ATTEMPTS", 3),
			BaseDelay:      getEnvAsDuration("LLM_BASE_DELAY", time.Second),
			AttemptTimeout: getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
			RateLimitRPS:   getEnvAsFloat("LLM_RATE_LIMIT_RPS", 0),
		},
		History: HistoryConfig{
			Backend: strings.ToLower(getEnv("HISTORY_BACKEND", HistoryBackendFile)),
			Path:    getEnv("HISTORY_PATH", "history.json"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "patentai"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "patentai"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		PromptsFile: getEnv("PROMPTS_FILE", ""),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate は設定値の整合性を検証します
// APIキーの有無は検証しない (履歴の参照などキー不要のコマンドがあるため)
func (c *Config) Validate() error {
	var errs []error

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGroq, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be one of openai, groq, gemini: %q", c.LLM.Provider))
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		errs = append(errs, fmt.Errorf("LLM_TEMPERATURE must be within 0.0-1.0: %v", c.LLM.Temperature))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("LLM_MAX_TOKENS must be positive: %d", c.LLM.MaxTokens))
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("LLM_MAX_ATTEMPTS must be positive: %d", c.Retry.MaxAttempts))
	}
	if c.Retry.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("LLM_BASE_DELAY must not be negative: %s", c.Retry.BaseDelay))
	}
	if c.Retry.AttemptTimeout <= 0 {
		errs = append(errs, fmt.Errorf("LLM_TIMEOUT must be positive: %s", c.Retry.AttemptTimeout))
	}
	if c.Retry.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("LLM_RATE_LIMIT_RPS must not be negative: %v", c.Retry.RateLimitRPS))
	}

	switch c.History.Backend {
	case HistoryBackendFile, HistoryBackendJournal:
		if c.History.Path == "" {
			errs = append(errs, errors.New("HISTORY_PATH is required for file and journal backends"))
		}
	case HistoryBackendPostgres, HistoryBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("HISTORY_BACKEND must be one of file, journal, postgres, memory: %q", c.History.Backend))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT is out of range: %d", c.Server.Port))
	}

	return errors.Join(errs...)
}

// UpstreamConfigured は上流の認証情報が設定されているかを返します
func (c *Config) UpstreamConfigured() bool {
	return c.LLM.APIKey != ""
}

// providerAPIKey はプロバイダ固有の環境変数からAPIキーを取得します
func providerAPIKey(provider string) string {
	switch provider {
	case ProviderGroq:
		return os.Getenv("GROQ_API_KEY")
	case ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を時間として取得します
// "1.5s" のような Go の表記に加え、単位なしの数値は秒として扱います
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if seconds, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	return defaultValue
}

// getEnvAsList はカンマ区切りの環境変数をスライスとして取得します
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
