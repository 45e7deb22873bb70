package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MasterCoderKay/patent-ai/internal/platform/config"
	"github.com/MasterCoderKay/patent-ai/internal/platform/container"
	"github.com/MasterCoderKay/patent-ai/internal/platform/logger"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Container *container.Container
	logger    *slog.Logger
}

// NewAppContext は設定ファイルを読み込み、コンテナを初期化して AppContext を作成する
func NewAppContext(ctx context.Context, envFile string, opts ...container.ContainerOption) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})

	opts = append([]container.ContainerOption{container.WithContainerLogger(appLogger)}, opts...)
	cont, err := container.New(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}

	return &AppContext{
		Config:    cfg,
		Container: cont,
		logger:    appLogger,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		ac.Container.Close()
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.logger != nil {
		return ac.logger
	}
	return slog.Default()
}

// truncateString は表示用に文字列を切り詰める
func truncateString(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
