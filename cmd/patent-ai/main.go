package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/MasterCoderKay/patent-ai/cmd/patent-ai/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定 (設定読み込み後に置き換える)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// コンテナのCPUクォータに合わせて GOMAXPROCS を調整する
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug("maxprocs", "message", format, "args", args)
	})); err != nil {
		logger.Warn("failed to set GOMAXPROCS", "error", err)
	}

	app := &cli.Command{
		Name:  "patent-ai",
		Usage: "発明・特許クレームをLLMで推敲・分析するバックエンド",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "HTTPサーバコマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "HTTP APIサーバを起動",
						Flags: []cli.Flag{
							envFlag(),
							&cli.IntFlag{
								Name:  "port",
								Usage: "待ち受けポート（省略時は PORT 環境変数）",
							},
						},
						Action: commands.ServerStartAction,
					},
				},
			},
			{
				Name:  "run",
				Usage: "タスクを1件実行して結果を表示",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "task",
						Usage:    "タスク名（polish, analyze, score, keywords, pitch, claim）",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "text",
						Usage:    "入力テキスト（- の場合は標準入力から読む）",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "発明のタイトル（analyze のみ）",
					},
					&cli.StringFlag{
						Name:  "language",
						Usage: "分析言語（claim のみ）",
					},
					&cli.BoolFlag{
						Name:  "detailed",
						Usage: "詳細な分析を行う（claim のみ）",
					},
				},
				Action: commands.RunAction,
			},
			{
				Name:  "history",
				Usage: "推敲履歴コマンド",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "履歴一覧を表示",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.HistoryListAction,
					},
					{
						Name:  "export",
						Usage: "履歴をファイルに書き出す",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:  "format",
								Usage: "出力形式（json または csv）",
								Value: commands.ExportFormatJSON,
							},
							&cli.StringFlag{
								Name:  "output",
								Usage: "出力ファイルパス（省略時は標準出力）",
							},
						},
						Action: commands.HistoryExportAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// envFlag は各コマンド共通の --env フラグを返す
func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}
