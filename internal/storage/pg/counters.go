package pg

import (
	"context"

	"github.com/dn5s/lthread/internal/domain"
)

// nextId atomically increments a named counter and returns the new value.
// The row-level lock taken by UPDATE makes concurrent callers across
// processes serialize on the counter: values are unique and strictly
// increasing. A failed caller consumes no id.
func (s *Storage) nextId(ctx context.Context, name string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowContext(ctx,
		"UPDATE counters SET value = value + 1 WHERE name = $1 RETURNING value",
		name,
	).Scan(&id)
	if err != nil {
		return 0, storeErr("failed to increment counter "+name, err)
	}
	return id, nil
}

func (s *Storage) NextPostId(ctx context.Context) (domain.PostId, error) {
	return s.nextId(ctx, "post_id")
}

func (s *Storage) NextThreadId(ctx context.Context) (domain.ThreadId, error) {
	return s.nextId(ctx, "thread_id")
}
