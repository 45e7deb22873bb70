package history

import (
	"context"
	"errors"
)

// ErrMalformedHistory は永続化された履歴ドキュメントを解釈できない場合のエラー
var ErrMalformedHistory = errors.New("malformed history document")

// Entry は推敲前後のクレームの組
type Entry struct {
	Original string `json:"original"`
	Polished string `json:"polished"`
}

// Store は追記専用の履歴ストア
// 挿入順が唯一の順序保証であり、エントリは削除されない
type Store interface {
	// Load は永続化された履歴を読み込む。プロセス起動時に1回だけ呼ぶ
	Load(ctx context.Context) ([]Entry, error)
	// Append はエントリを追加し、成功時には永続化まで完了している
	Append(ctx context.Context, entry Entry) error
	// List は挿入順のスナップショットを返す
	List(ctx context.Context) ([]Entry, error)
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
