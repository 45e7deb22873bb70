package container

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/MasterCoderKay/patent-ai/internal/core/gateway"
	"github.com/MasterCoderKay/patent-ai/internal/core/history"
	"github.com/MasterCoderKay/patent-ai/internal/core/patent"
	"github.com/MasterCoderKay/patent-ai/internal/infra/gemini"
	"github.com/MasterCoderKay/patent-ai/internal/infra/openai"
	"github.com/MasterCoderKay/patent-ai/internal/infra/postgres"
	"github.com/MasterCoderKay/patent-ai/internal/infra/tokenizer"
	"github.com/MasterCoderKay/patent-ai/internal/platform/config"
	"github.com/MasterCoderKay/patent-ai/internal/platform/database"
)

// Container はアプリケーションの依存関係を保持する
type Container struct {
	Config  *config.Config
	History history.Store
	// Gateway と Patent は WithoutUpstream 指定時には nil
	Gateway *gateway.Gateway
	Patent  *patent.Service

	provider string
	model    string
	logger   *slog.Logger
	closers  []func()
}

type containerOptions struct {
	logger          *slog.Logger
	transport       gateway.Transport
	store           history.Store
	counter         patent.TokenCounter
	withoutUpstream bool
}

// ContainerOption は Container 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerTransport は上流の Transport を差し替える
func WithContainerTransport(transport gateway.Transport) ContainerOption {
	return func(opts *containerOptions) {
		opts.transport = transport
	}
}

// WithContainerHistoryStore は履歴ストアを差し替える
func WithContainerHistoryStore(store history.Store) ContainerOption {
	return func(opts *containerOptions) {
		opts.store = store
	}
}

// WithContainerTokenCounter はトークンカウンタを差し替える
func WithContainerTokenCounter(counter patent.TokenCounter) ContainerOption {
	return func(opts *containerOptions) {
		opts.counter = counter
	}
}

// WithoutUpstream は上流を使わないコマンド向けに、履歴ストアだけを構築する
func WithoutUpstream() ContainerOption {
	return func(opts *containerOptions) {
		opts.withoutUpstream = true
	}
}

// New は設定からコンテナを生成する
// 履歴の読み込みに失敗した場合と、上流の認証情報がない場合はエラーを返す
func New(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	c := &Container{
		Config:   cfg,
		provider: cfg.LLM.Provider,
		logger:   options.logger,
	}

	store := options.store
	if store == nil {
		var err error
		store, err = c.newHistoryStore(ctx)
		if err != nil {
			c.Close()
			return nil, err
		}
	}
	if _, err := store.Load(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("履歴の読み込みに失敗しました: %w", err)
	}
	c.History = store

	if options.withoutUpstream {
		return c, nil
	}

	transport := options.transport
	if transport == nil {
		t, model, err := newTransport(ctx, cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		transport = t
		c.model = model
	}
	if cfg.LLM.Model != "" {
		c.model = cfg.LLM.Model
	}

	gwOpts := []gateway.Option{
		gateway.WithGatewayLogger(options.logger),
		gateway.WithDefaults(cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.MaxTokens),
		gateway.WithRetryPolicy(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay),
		gateway.WithAttemptTimeout(cfg.Retry.AttemptTimeout),
	}
	if cfg.Retry.RateLimitRPS > 0 {
		gwOpts = append(gwOpts, gateway.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.Retry.RateLimitRPS), 1)))
	}
	c.Gateway = gateway.New(transport, gwOpts...)

	counter := options.counter
	if counter == nil {
		counter = tokenizer.New(options.logger)
	}

	svcOpts := []patent.ServiceOption{
		patent.WithServiceLogger(options.logger),
		patent.WithTokenBudget(counter, cfg.LLM.MaxPromptTokens),
	}
	if cfg.PromptsFile != "" {
		overrides, err := patent.LoadPromptOverrides(cfg.PromptsFile)
		if err != nil {
			c.Close()
			return nil, err
		}
		svcOpts = append(svcOpts, patent.WithPromptOverrides(overrides))
	}

	svc, err := patent.NewService(c.Gateway, store, svcOpts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Patent = svc

	options.logger.Info("container initialized",
		"provider", c.provider,
		"model", c.model,
		"historyBackend", cfg.History.Backend,
		"maxAttempts", cfg.Retry.MaxAttempts,
	)

	return c, nil
}

// Provider は上流プロバイダ名を返す
func (c *Container) Provider() string {
	return c.provider
}

// Model は上流のデフォルトモデル名を返す
func (c *Container) Model() string {
	return c.model
}

// Close は保持しているリソースを解放する
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Container) newHistoryStore(ctx context.Context) (history.Store, error) {
	cfg := c.Config
	storeOpts := []history.Option{history.WithLogger(c.logger)}

	switch cfg.History.Backend {
	case config.HistoryBackendJournal:
		return history.NewJournalStore(cfg.History.Path, storeOpts...), nil
	case config.HistoryBackendMemory:
		return history.NewMemoryStore(), nil
	case config.HistoryBackendPostgres:
		pool, err := database.Connect(ctx, database.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		c.closers = append(c.closers, pool.Close)

		repo := postgres.NewHistoryRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return history.NewFileStore(cfg.History.Path, storeOpts...), nil
	}
}

// newTransport はプロバイダに応じた Transport とデフォルトモデル名を返す
func newTransport(ctx context.Context, cfg *config.Config) (gateway.Transport, string, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
		if err != nil {
			return nil, "", err
		}
		return client, client.ModelName(), nil
	case config.ProviderGroq:
		baseURL := cfg.LLM.BaseURL
		if baseURL == "" {
			baseURL = openai.GroqBaseURL
		}
		model := cfg.LLM.Model
		if model == "" {
			model = openai.GroqDefaultModel
		}
		client, err := openai.NewClient(cfg.LLM.APIKey, model, openai.WithBaseURL(baseURL))
		if err != nil {
			return nil, "", err
		}
		return client, client.ModelName(), nil
	default:
		var clientOpts []openai.ClientOption
		if cfg.LLM.BaseURL != "" {
			clientOpts = append(clientOpts, openai.WithBaseURL(cfg.LLM.BaseURL))
		}
		client, err := openai.NewClient(cfg.LLM.APIKey, cfg.LLM.Model, clientOpts...)
		if err != nil {
			return nil, "", err
		}
		return client, client.ModelName(), nil
	}
}
