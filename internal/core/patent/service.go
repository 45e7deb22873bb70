package patent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MasterCoderKay/patent-ai/internal/core/gateway"
	"github.com/MasterCoderKay/patent-ai/internal/core/history"
)

// DefaultMaxPromptTokens はプロンプト全体で許容するトークン数の上限
const DefaultMaxPromptTokens = 8000

// Completer はリトライ込みの補完呼び出し
// *gateway.Gateway が実装する
type Completer interface {
	Complete(ctx context.Context, req gateway.CompletionRequest) (*gateway.CompletionResult, error)
}

// TokenCounter はプロンプトのトークン数を数える
type TokenCounter interface {
	CountTokens(text string) int
}

// Service は特許タスクを実行するアプリケーションサービス
type Service struct {
	completer Completer
	store     history.Store
	prompts   map[Task]compiledPrompt

	counter         TokenCounter
	maxPromptTokens int

	logger *slog.Logger
}

// ServiceOption は Service 構築時のオプション
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger          *slog.Logger
	counter         TokenCounter
	maxPromptTokens int
	overrides       map[Task]PromptOverride
}

// WithServiceLogger は Service にロガーを設定する
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithTokenBudget はトークンカウンタとプロンプトの上限トークン数を設定する
func WithTokenBudget(counter TokenCounter, maxPromptTokens int) ServiceOption {
	return func(o *serviceOptions) {
		o.counter = counter
		o.maxPromptTokens = maxPromptTokens
	}
}

// WithPromptOverrides はデフォルトのプロンプトを上書きする
func WithPromptOverrides(overrides map[Task]PromptOverride) ServiceOption {
	return func(o *serviceOptions) {
		o.overrides = overrides
	}
}

// NewService は Service を作成する
func NewService(completer Completer, store history.Store, opts ...ServiceOption) (*Service, error) {
	o := serviceOptions{
		logger:          slog.Default(),
		maxPromptTokens: DefaultMaxPromptTokens,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.maxPromptTokens <= 0 {
		o.maxPromptTokens = DefaultMaxPromptTokens
	}

	prompts, err := compilePrompts(DefaultPrompts(), o.overrides)
	if err != nil {
		return nil, err
	}

	return &Service{
		completer:       completer,
		store:           store,
		prompts:         prompts,
		counter:         o.counter,
		maxPromptTokens: o.maxPromptTokens,
		logger:          o.logger,
	}, nil
}

// Run はタスクを1件実行する
// 入力不備は上流を呼ぶ前に KindClientInput の ServiceError として返す
func (s *Service) Run(ctx context.Context, task Task, in Input) (*Output, error) {
	in, err := task.validate(in)
	if err != nil {
		return nil, err
	}

	prompt, ok := s.prompts[task]
	if !ok {
		return nil, gateway.InvalidInput("unknown task: %s", task)
	}

	userContent, err := prompt.render(in)
	if err != nil {
		return nil, gateway.Internal(fmt.Errorf("failed to render prompt for %s: %w", task, err))
	}

	if s.counter != nil {
		tokens := s.counter.CountTokens(prompt.system) + s.counter.CountTokens(userContent)
		if tokens > s.maxPromptTokens {
			return nil, gateway.InvalidInput("input too long: prompt is %d tokens, limit is %d", tokens, s.maxPromptTokens)
		}
	}

	result, err := s.completer.Complete(ctx, gateway.CompletionRequest{
		SystemPrompt: prompt.system,
		UserContent:  userContent,
		Temperature:  prompt.temperature,
	})
	if err != nil {
		return nil, err
	}

	out := &Output{
		Text:     result.Text,
		Model:    result.Model,
		Attempts: result.Attempts,
	}
	if task == TaskClaim {
		out.TechnicalTerms = ExtractTechnicalTerms(result.Text)
	}

	if task.RecordsHistory() && s.store != nil {
		entry := history.Entry{Original: in.Text, Polished: result.Text}
		// 結果を得た後の切断で履歴が欠けないよう、キャンセルは引き継がない
		if err := s.store.Append(context.WithoutCancel(ctx), entry); err != nil {
			// 結果は返し、履歴の失敗はログに残すだけにする
			s.logger.Error("failed to append history",
				"task", task,
				"error", err,
			)
		}
	}

	s.logger.Info("task completed",
		"task", task,
		"model", result.Model,
		"attempts", result.Attempts,
		"input_chars", len(in.Text),
	)

	return out, nil
}

// History は挿入順の履歴を返す
func (s *Service) History(ctx context.Context) ([]history.Entry, error) {
	if s.store == nil {
		return []history.Entry{}, nil
	}
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, gateway.Internal(fmt.Errorf("failed to list history: %w", err))
	}
	return entries, nil
}
