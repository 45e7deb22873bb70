package gateway

import "context"

// Transport は上流のLLMプロバイダへ1回分の呼び出しを行うインターフェース
// リトライは Gateway 側で行うため、実装はリトライしてはならない
type Transport interface {
	// Send はリクエストを送信し、生成テキストと実際に使用されたモデル名を返す
	Send(ctx context.Context, req CompletionRequest) (text string, model string, err error)
}

// CompletionRequest はLLMへのリクエストパラメータ
type CompletionRequest struct {
	// SystemPrompt はシステム指示
	SystemPrompt string

	// UserContent はユーザー入力
	UserContent string

	// Model はLLMモデル名 (省略時は設定のデフォルトモデルを使用)
	Model string

	// Temperature は生成の多様性を制御する (0.0-1.0)
	// nil の場合は Gateway のデフォルト温度を使う
	Temperature *float64

	// MaxTokens は生成する最大トークン数
	MaxTokens int
}

// Float は Temperature などの省略可能な値へのポインタを返す
func Float(v float64) *float64 {
	return &v
}

// CompletionResult は成功したLLM呼び出しの結果
type CompletionResult struct {
	// Text は生成されたテキスト (空文字列もあり得る)
	Text string

	// Model は実際に使用されたモデル名
	Model string

	// Attempts は成功までに要した試行回数
	Attempts int
}
