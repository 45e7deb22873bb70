package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultMaxAttempts は上流呼び出しの最大試行回数 (初回を含む)
	DefaultMaxAttempts = 3

	// DefaultBaseDelay は線形バックオフの基底時間
	DefaultBaseDelay = 1 * time.Second

	// DefaultTimeout は1回の試行あたりのタイムアウト
	DefaultTimeout = 30 * time.Second

	// DefaultTemperature はデフォルトのサンプリング温度
	DefaultTemperature = 0.7

	// DefaultMaxTokens はデフォルトの最大出力トークン数
	DefaultMaxTokens = 2000
)

// Gateway はリトライ付きでLLMの補完呼び出しを行う
type Gateway struct {
	transport Transport

	model       string
	temperature float64
	maxTokens   int

	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration

	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

// Option は Gateway 構築時のオプション
type Option func(*Gateway)

// WithGatewayLogger は Gateway にロガーを設定する
func WithGatewayLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithDefaults はリクエストで省略された値に使うデフォルトを設定する
func WithDefaults(model string, temperature float64, maxTokens int) Option {
	return func(g *Gateway) {
		g.model = model
		g.temperature = temperature
		g.maxTokens = maxTokens
	}
}

// WithRetryPolicy は最大試行回数とバックオフの基底時間を設定する
func WithRetryPolicy(maxAttempts int, baseDelay time.Duration) Option {
	return func(g *Gateway) {
		g.maxAttempts = maxAttempts
		g.baseDelay = baseDelay
	}
}

// WithAttemptTimeout は1回の試行あたりのタイムアウトを設定する
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = timeout
	}
}

// WithRateLimiter は上流呼び出しのレート制限を設定する
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(g *Gateway) {
		g.limiter = limiter
	}
}

// New は新しい Gateway を作成する
func New(transport Transport, opts ...Option) *Gateway {
	g := &Gateway{
		transport:   transport,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		timeout:     DefaultTimeout,
		sleep:       sleepWithContext,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = DefaultMaxAttempts
	}
	if g.baseDelay < 0 {
		g.baseDelay = 0
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}

	return g
}

// Model はデフォルトのモデル名を返す
func (g *Gateway) Model() string {
	return g.model
}

// MaxAttempts は最大試行回数を返す
func (g *Gateway) MaxAttempts() int {
	return g.maxAttempts
}

// Backoff は attempt 回目の失敗後、次の試行までに待つ時間を返す
func (g *Gateway) Backoff(attempt int) time.Duration {
	return g.baseDelay * time.Duration(attempt)
}

// Complete はリトライ付きで補完を実行する
// 試行をすべて使い切った場合は KindUpstreamUnavailable の ServiceError を返す
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	req = g.applyDefaults(req)

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := g.Backoff(attempt - 1)
			g.logger.Debug("backing off before retry",
				"attempt", attempt,
				"delay", delay,
			)
			if err := g.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("completion abandoned during backoff: %w", err)
			}
		}

		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, fmt.Errorf("completion abandoned while rate limited: %w", ctxErr)
				}
				// 期限までにトークンを得られない場合は上流を使えない扱いにする
				return nil, &ServiceError{
					Kind:     KindUpstreamUnavailable,
					Attempts: attempt - 1,
					Err:      fmt.Errorf("rate limiter wait failed: %w", err),
				}
			}
		}

		text, model, err := g.attempt(ctx, req)
		if err == nil {
			if model == "" {
				model = req.Model
			}
			g.logger.Info("completion succeeded",
				"model", model,
				"attempts", attempt,
				"responseLength", len(text),
			)
			return &CompletionResult{
				Text:     strings.TrimSpace(text),
				Model:    model,
				Attempts: attempt,
			}, nil
		}

		// 呼び出し元がキャンセルした場合はリトライせずに打ち切る
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("completion canceled after %d attempt(s): %w", attempt, ctxErr)
		}

		lastErr = err
		class := classify(err)
		g.logger.Warn("completion attempt failed",
			"attempt", attempt,
			"maxAttempts", g.maxAttempts,
			"class", class.String(),
			"error", err,
		)

		switch class {
		case classMalformed:
			return nil, &ServiceError{Kind: KindInternal, Message: "internal error", Attempts: attempt, Err: err}
		case classRejected:
			return nil, &ServiceError{Kind: KindUpstreamUnavailable, Attempts: attempt, Err: err}
		}
	}

	g.logger.Error("completion retries exhausted",
		"attempts", g.maxAttempts,
		"error", lastErr,
	)

	return nil, &ServiceError{
		Kind:     KindUpstreamUnavailable,
		Attempts: g.maxAttempts,
		Err:      fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, lastErr),
	}
}

func (g *Gateway) attempt(ctx context.Context, req CompletionRequest) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	return g.transport.Send(ctx, req)
}

func (g *Gateway) applyDefaults(req CompletionRequest) CompletionRequest {
	if req.Model == "" {
		req.Model = g.model
	}
	if req.Temperature == nil {
		req.Temperature = Float(g.temperature)
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = g.maxTokens
	}
	return req
}

// sleepWithContext は指定時間待機するが、コンテキストがキャンセルされた場合は即座に戻る
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
