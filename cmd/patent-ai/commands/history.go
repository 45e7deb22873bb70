package commands

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/MasterCoderKay/patent-ai/internal/core/history"
	"github.com/MasterCoderKay/patent-ai/internal/platform/container"
)

// 履歴のエクスポート形式
const (
	ExportFormatJSON = "json"
	ExportFormatCSV  = "csv"
)

// HistoryListAction は履歴一覧を表示するコマンドのアクション
func HistoryListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	// 履歴の参照に上流の認証情報は不要
	appCtx, err := NewAppContext(ctx, envFile, container.WithoutUpstream())
	if err != nil {
		return err
	}
	defer appCtx.Close()

	entries, err := appCtx.Container.History.List(ctx)
	if err != nil {
		return fmt.Errorf("履歴の取得に失敗: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("履歴がありません")
		return nil
	}

	if err := renderHistoryTable(os.Stdout, entries); err != nil {
		return fmt.Errorf("履歴の表示に失敗: %w", err)
	}
	return nil
}

// HistoryExportAction は履歴をファイルへ書き出すコマンドのアクション
func HistoryExportAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	format := strings.ToLower(cmd.String("format"))
	outputPath := cmd.String("output")

	if format != ExportFormatJSON && format != ExportFormatCSV {
		return fmt.Errorf("未対応の形式です: %s (json または csv)", format)
	}

	appCtx, err := NewAppContext(ctx, envFile, container.WithoutUpstream())
	if err != nil {
		return err
	}
	defer appCtx.Close()

	entries, err := appCtx.Container.History.List(ctx)
	if err != nil {
		return fmt.Errorf("履歴の取得に失敗: %w", err)
	}

	if outputPath == "" || outputPath == "-" {
		return exportHistory(os.Stdout, format, entries)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
		}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("出力ファイルの作成に失敗: %w", err)
	}
	defer f.Close()

	if err := exportHistory(f, format, entries); err != nil {
		return err
	}

	appCtx.Logger().Info("履歴をエクスポートしました",
		"format", format,
		"output", outputPath,
		"entries", len(entries),
	)

	return f.Close()
}

func exportHistory(w io.Writer, format string, entries []history.Entry) error {
	switch format {
	case ExportFormatCSV:
		return writeHistoryCSV(w, entries)
	default:
		return writeHistoryJSON(w, entries)
	}
}

// writeHistoryJSON は GET /history と同じ形の JSON 配列を書き出す
func writeHistoryJSON(w io.Writer, entries []history.Entry) error {
	if entries == nil {
		entries = []history.Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("JSONの書き出しに失敗: %w", err)
	}
	return nil
}

func writeHistoryCSV(w io.Writer, entries []history.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "original", "polished"}); err != nil {
		return fmt.Errorf("CSVの書き出しに失敗: %w", err)
	}
	for i, e := range entries {
		if err := cw.Write([]string{strconv.Itoa(i + 1), e.Original, e.Polished}); err != nil {
			return fmt.Errorf("CSVの書き出しに失敗: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("CSVの書き出しに失敗: %w", err)
	}
	return nil
}

// renderHistoryTable は履歴一覧を表形式で表示する
func renderHistoryTable(w io.Writer, entries []history.Entry) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Original", "Polished")

	for i, e := range entries {
		if err := table.Append(
			strconv.Itoa(i+1),
			truncateString(singleLine(e.Original), 50),
			truncateString(singleLine(e.Polished), 60),
		); err != nil {
			return fmt.Errorf("行 %d の追加に失敗: %w", i+1, err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("表の描画に失敗: %w", err)
	}
	return nil
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
