package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/dn5s/lthread/internal/domain"
	internal_errors "github.com/dn5s/lthread/internal/errors"
)

func (s *Storage) SavePost(ctx context.Context, post *domain.Post) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO posts (id, text, image_path, thumbnail_path, created_at, author)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, post.Id, post.Text, post.ImagePath, post.ThumbnailPath, post.CreatedAt, post.Author)
	if err != nil {
		return storeErr("failed to insert post", err)
	}
	return nil
}

func (s *Storage) GetPost(ctx context.Context, id domain.PostId) (*domain.Post, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var post domain.Post
	err := s.db.QueryRowContext(ctx, `
        SELECT id, text, image_path, thumbnail_path, created_at, author
        FROM posts WHERE id = $1
    `, id).Scan(&post.Id, &post.Text, &post.ImagePath, &post.ThumbnailPath, &post.CreatedAt, &post.Author)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal_errors.PostNotFound
		}
		return nil, storeErr("failed to fetch post", err)
	}
	return &post, nil
}

// GetPosts hydrates posts in the order of ids. Ids that no longer resolve are
// skipped; a thread whose sequence references a lost post still renders.
func (s *Storage) GetPosts(ctx context.Context, ids domain.PostIds) ([]*domain.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, text, image_path, thumbnail_path, created_at, author
        FROM posts WHERE id = ANY($1)
    `, pq.Array([]int64(ids)))
	if err != nil {
		return nil, storeErr("failed to fetch posts", err)
	}
	defer rows.Close()

	var fetched []*domain.Post
	for rows.Next() {
		var post domain.Post
		if err := rows.Scan(&post.Id, &post.Text, &post.ImagePath, &post.ThumbnailPath, &post.CreatedAt, &post.Author); err != nil {
			return nil, storeErr("failed to scan post", err)
		}
		fetched = append(fetched, &post)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("rows iteration error", err)
	}

	// Restore the sequence order of the thread.
	byId := lo.KeyBy(fetched, func(p *domain.Post) domain.PostId { return p.Id })
	posts := make([]*domain.Post, 0, len(fetched))
	for _, id := range ids {
		if post, ok := byId[id]; ok {
			posts = append(posts, post)
		}
	}
	return posts, nil
}

func (s *Storage) DeletePost(ctx context.Context, id domain.PostId) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE id = $1", id); err != nil {
		return storeErr("failed to delete post", err)
	}
	return nil
}
