package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore は履歴全体を1つのJSON配列ドキュメントとして保存する
// Append のたびにドキュメント全体を一時ファイルへ書き出し、rename で置き換える
type FileStore struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	entries []Entry
}

// Option はストア構築時のオプション
type Option func(*storeOptions)

type storeOptions struct {
	logger *slog.Logger
}

// WithLogger はストアのロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

func applyOptions(opts []Option) storeOptions {
	o := storeOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// NewFileStore は path を保存先とする FileStore を作成する
func NewFileStore(path string, opts ...Option) *FileStore {
	o := applyOptions(opts)
	return &FileStore{
		path:    path,
		logger:  o.logger,
		entries: []Entry{},
	}
}

// Path は保存先のパスを返す
func (s *FileStore) Path() string {
	return s.path
}

// Load はドキュメントを読み込んでメモリ上の履歴を置き換える
// ファイルが存在しない場合は空の履歴とする
func (s *FileStore) Load(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.entries = []Entry{}
			s.logger.Info("history file not found, starting empty", "path", s.path)
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read history %s: %w", s.path, err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedHistory, s.path, err)
	}
	if entries == nil {
		entries = []Entry{}
	}

	s.entries = entries
	s.logger.Info("history loaded", "path", s.path, "entries", len(entries))

	return cloneEntries(entries), nil
}

// Append はエントリを追加してドキュメント全体を書き直す
// 書き込みに失敗した場合はメモリ上の追加も取り消す
func (s *FileStore) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if err := s.persist(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return err
	}

	return nil
}

// List はメモリ上の履歴のコピーを返す
func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneEntries(s.entries), nil
}

// persist は s.mu を保持した状態で呼ぶ
func (s *FileStore) persist() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close history: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace history %s: %w", s.path, err)
	}

	// rename 済みのドキュメントは読み出せるため、ディレクトリの同期失敗は警告に留める
	if err := syncDir(dir); err != nil {
		s.logger.Warn("failed to sync history dir", "dir", dir, "error", err)
	}

	return nil
}

// syncDir はディレクトリエントリの変更をディスクへ反映する
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Sync()
}

// インターフェース実装の確認
var _ Store = (*FileStore)(nil)
