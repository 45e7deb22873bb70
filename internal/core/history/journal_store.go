package history

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// JournalStore は履歴を JSON Lines 形式の追記ログとして保存する
// Append は1行の追記と fsync のみで、ドキュメント全体は書き直さない
type JournalStore struct {
	path   string
	logger *slog.Logger

	mu           sync.Mutex
	entries      []Entry
	needsNewline bool
}

// NewJournalStore は path を保存先とする JournalStore を作成する
func NewJournalStore(path string, opts ...Option) *JournalStore {
	o := applyOptions(opts)
	return &JournalStore{
		path:    path,
		logger:  o.logger,
		entries: []Entry{},
	}
}

// Path は保存先のパスを返す
func (s *JournalStore) Path() string {
	return s.path
}

// Load はジャーナルを先頭から読み込む
// 末尾の行だけが壊れている場合は書き込み途中のクラッシュとみなし、警告を出して切り詰める
func (s *JournalStore) Load(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.entries = []Entry{}
			s.needsNewline = false
			s.logger.Info("history journal not found, starting empty", "path", s.path)
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to open history journal %s: %w", s.path, err)
	}
	defer f.Close()

	entries := []Entry{}
	reader := bufio.NewReader(f)
	var validSize int64
	lineNo := 0
	torn := false
	needsNewline := false

	for {
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("failed to read history journal %s: %w", s.path, readErr)
		}
		atEOF := errors.Is(readErr, io.EOF)

		if len(line) > 0 {
			lineNo++
			trimmed := bytes.TrimSpace(line)
			if len(trimmed) > 0 {
				var entry Entry
				if err := json.Unmarshal(trimmed, &entry); err != nil {
					if !atEOF {
						return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedHistory, s.path, lineNo, err)
					}
					torn = true
					break
				}
				entries = append(entries, entry)
			}
			validSize += int64(len(line))
			needsNewline = line[len(line)-1] != '\n'
		}

		if atEOF {
			break
		}
	}

	if torn {
		s.logger.Warn("skipping torn final line in history journal",
			"path", s.path,
			"line", lineNo,
		)
		if err := os.Truncate(s.path, validSize); err != nil {
			return nil, fmt.Errorf("failed to truncate torn history journal: %w", err)
		}
	}

	s.entries = entries
	s.needsNewline = needsNewline
	s.logger.Info("history journal loaded", "path", s.path, "entries", len(entries))

	return cloneEntries(entries), nil
}

// Append はエントリを1行追記して fsync する
// 書き込みに成功した場合のみメモリ上の履歴に反映する
func (s *JournalStore) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.needsNewline {
		line = append([]byte{'\n'}, line...)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history journal %s: %w", s.path, err)
	}

	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync history journal: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close history journal: %w", err)
	}

	s.needsNewline = false
	s.entries = append(s.entries, entry)

	return nil
}

// List はメモリ上の履歴のコピーを返す
func (s *JournalStore) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneEntries(s.entries), nil
}

// インターフェース実装の確認
var _ Store = (*JournalStore)(nil)
