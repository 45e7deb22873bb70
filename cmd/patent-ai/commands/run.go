package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/MasterCoderKay/patent-ai/internal/core/gateway"
	"github.com/MasterCoderKay/patent-ai/internal/core/patent"
)

// RunAction はタスクを1件だけ実行して結果を標準出力に書き出す
func RunAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	task, err := patent.ParseTask(cmd.String("task"))
	if err != nil {
		return err
	}

	text := cmd.String("text")
	if text == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("標準入力の読み込みに失敗: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	out, err := appCtx.Container.Patent.Run(ctx, task, patent.Input{
		Text:     text,
		Title:    cmd.String("title"),
		Language: cmd.String("language"),
		Detailed: cmd.Bool("detailed"),
	})
	if err != nil {
		if svcErr, ok := gateway.AsServiceError(err); ok && svcErr.Kind == gateway.KindClientInput {
			return fmt.Errorf("入力が不正です: %s", svcErr.Message)
		}
		return fmt.Errorf("タスクの実行に失敗: %w", err)
	}

	fmt.Println(out.Text)
	if len(out.TechnicalTerms) > 0 {
		fmt.Printf("\nTechnical terms: %s\n", strings.Join(out.TechnicalTerms, ", "))
	}

	appCtx.Logger().Info("タスクが完了しました",
		"task", task,
		"model", out.Model,
		"attempts", out.Attempts,
	)

	return nil
}
