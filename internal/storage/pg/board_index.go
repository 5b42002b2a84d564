package pg

import (
	"context"
	"database/sql"

	"github.com/dn5s/lthread/internal/domain"
)

// BumpThread raises the thread's activity score. GREATEST keeps the score
// monotonic even if two bumps race: the entry only ever moves forward in
// recency.
func (s *Storage) BumpThread(ctx context.Context, board domain.BoardName, id domain.ThreadId, score int64) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO board_index (board, thread_id, bumped_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (board, thread_id)
        DO UPDATE SET bumped_at = GREATEST(board_index.bumped_at, EXCLUDED.bumped_at)
    `, board, id, score)
	if err != nil {
		return storeErr("failed to bump thread", err)
	}
	return nil
}

// RecentThreadIds returns one 1-based page of thread ids ordered by
// descending activity score, ties broken by descending thread id.
func (s *Storage) RecentThreadIds(ctx context.Context, board domain.BoardName, page, pageSize int) ([]domain.ThreadId, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
        SELECT thread_id FROM board_index
        WHERE board = $1
        ORDER BY bumped_at DESC, thread_id DESC
        LIMIT $2 OFFSET $3
    `, board, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, storeErr("failed to list recent threads", err)
	}
	defer rows.Close()

	return scanThreadIds(rows)
}

func scanThreadIds(rows *sql.Rows) ([]domain.ThreadId, error) {
	var ids []domain.ThreadId
	for rows.Next() {
		var id domain.ThreadId
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("failed to scan thread id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("rows iteration error", err)
	}
	return ids, nil
}

func (s *Storage) ThreadCount(ctx context.Context, board domain.BoardName) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM board_index WHERE board = $1", board,
	).Scan(&count)
	if err != nil {
		return 0, storeErr("failed to count threads", err)
	}
	return count, nil
}

// OldestThreadIds returns the tail of the index, oldest activity first.
// Eviction candidates come from here.
func (s *Storage) OldestThreadIds(ctx context.Context, board domain.BoardName, count int) ([]domain.ThreadId, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
        SELECT thread_id FROM board_index
        WHERE board = $1
        ORDER BY bumped_at ASC, thread_id ASC
        LIMIT $2
    `, board, count)
	if err != nil {
		return nil, storeErr("failed to list oldest threads", err)
	}
	defer rows.Close()

	return scanThreadIds(rows)
}
