package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/dn5s/lthread/internal/domain"
	internal_errors "github.com/dn5s/lthread/internal/errors"
)

// CreateThread persists the OP post, the thread record and the board index
// entry in one transaction. A reader can never observe the thread id without
// being able to resolve at least the OP.
func (s *Storage) CreateThread(ctx context.Context, id domain.ThreadId, board domain.BoardName, op *domain.Post, score int64) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO posts (id, text, image_path, thumbnail_path, created_at, author)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, op.Id, op.Text, op.ImagePath, op.ThumbnailPath, op.CreatedAt, op.Author)
	if err != nil {
		return storeErr("failed to insert OP post", err)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO threads (id, board, post_ids, created_at)
        VALUES ($1, $2, $3, $4)
    `, id, board, pq.Array([]int64{op.Id}), op.CreatedAt)
	if err != nil {
		return storeErr("failed to insert thread", err)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO board_index (board, thread_id, bumped_at)
        VALUES ($1, $2, $3)
    `, board, id, score)
	if err != nil {
		return storeErr("failed to insert board index entry", err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr("failed to commit thread creation", err)
	}
	return nil
}

func (s *Storage) GetThread(ctx context.Context, id domain.ThreadId) (domain.Thread, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	thread := domain.Thread{Id: id}
	err := s.db.QueryRowContext(ctx, `
        SELECT board, post_ids, created_at FROM threads WHERE id = $1
    `, id).Scan(&thread.Board, &thread.PostIds, &thread.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Thread{}, internal_errors.ThreadNotFound
		}
		return domain.Thread{}, storeErr("failed to fetch thread", err)
	}
	return thread, nil
}

// AppendPost appends one post id to the thread's sequence. array_append in a
// single UPDATE is atomic; concurrent replies serialize on the row and both
// land, order decided by the store.
func (s *Storage) AppendPost(ctx context.Context, id domain.ThreadId, postId domain.PostId) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		"UPDATE threads SET post_ids = array_append(post_ids, $2) WHERE id = $1",
		id, postId,
	)
	if err != nil {
		return storeErr("failed to append post to thread", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return internal_errors.ThreadNotFound
	}
	return nil
}

func (s *Storage) DeleteThread(ctx context.Context, board domain.BoardName, id domain.ThreadId) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM threads WHERE id = $1", id)
	if err != nil {
		return storeErr("failed to delete thread", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return internal_errors.ThreadNotFound
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM board_index WHERE board = $1 AND thread_id = $2",
		board, id,
	)
	if err != nil {
		return storeErr("failed to delete board index entry", err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr("failed to commit thread deletion", err)
	}
	return nil
}
