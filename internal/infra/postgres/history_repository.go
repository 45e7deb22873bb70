package postgres

import (
	"context"
	"fmt"

	"github.com/MasterCoderKay/patent-ai/internal/core/history"
	"github.com/MasterCoderKay/patent-ai/internal/platform/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS claim_history (
    id         BIGSERIAL PRIMARY KEY,
    original   TEXT NOT NULL,
    polished   TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	insertHistorySQL = `INSERT INTO claim_history (original, polished) VALUES ($1, $2)`
	listHistorySQL   = `SELECT original, polished FROM claim_history ORDER BY id`
)

// HistoryRepository は history.Store インターフェースを実装する PostgreSQL リポジトリです
// 挿入順は BIGSERIAL の id で保証する
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository は新しい HistoryRepository を作成します
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// コンパイル時の型チェック
var _ history.Store = (*HistoryRepository)(nil)

// EnsureSchema は claim_history テーブルがなければ作成します
// 複数プロセスが同時に起動しても DDL が競合しないようアドバイザリロックで直列化する
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	return database.Transact(ctx, r.pool, func(tx pgx.Tx) error {
		if err := database.AcquireXactLock(ctx, tx, database.LockID("patent-ai", "claim_history", "schema")); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("failed to create claim_history: %w", err)
		}
		return nil
	})
}

// Load はテーブルに保存された全履歴を返します
func (r *HistoryRepository) Load(ctx context.Context) ([]history.Entry, error) {
	return r.List(ctx)
}

func (r *HistoryRepository) Append(ctx context.Context, entry history.Entry) error {
	if _, err := r.pool.Exec(ctx, insertHistorySQL, entry.Original, entry.Polished); err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

func (r *HistoryRepository) List(ctx context.Context) ([]history.Entry, error) {
	rows, err := r.pool.Query(ctx, listHistorySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Entry, error) {
		var e history.Entry
		err := row.Scan(&e.Original, &e.Polished)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan history: %w", err)
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	return entries, nil
}
