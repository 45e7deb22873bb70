package tokenizer

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// EncodingName は使用する tiktoken エンコーディング
const EncodingName = "cl100k_base"

// Counter はプロンプトのトークン数を数える
// エンコーディングを取得できない環境では文字数からの推定値にフォールバックする
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// New は Counter を作成する
// tiktoken は初回にエンコーディングを取得するため、失敗しても起動は止めない
func New(logger *slog.Logger) *Counter {
	if logger == nil {
		logger = slog.Default()
	}

	encoding, err := tiktoken.GetEncoding(EncodingName)
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, falling back to estimate",
			"encoding", EncodingName,
			"error", err,
		)
		return &Counter{}
	}

	return &Counter{encoding: encoding}
}

// Exact は tiktoken による正確なカウントが有効かどうかを返す
func (c *Counter) Exact() bool {
	return c.encoding != nil
}

// CountTokens はテキストのトークン数を返す
func (c *Counter) CountTokens(text string) int {
	if c.encoding == nil {
		return EstimateTokens(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// EstimateTokens はテキストの推定トークン数を返す
// 英語は約4文字、日本語は約1文字で1トークンのため、平均として3文字で1トークンとする
func EstimateTokens(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return (n + 2) / 3
}
