package history

import (
	"context"
	"sync"
)

// MemoryStore は永続化しない履歴ストア
// HISTORY_BACKEND=memory とテストで使う
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryStore は空の MemoryStore を作成する
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: []Entry{}}
}

func (s *MemoryStore) Load(ctx context.Context) ([]Entry, error) {
	return s.List(ctx)
}

func (s *MemoryStore) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)

	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneEntries(s.entries), nil
}

var _ Store = (*MemoryStore)(nil)
