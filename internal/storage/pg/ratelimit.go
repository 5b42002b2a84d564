package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dn5s/lthread/internal/service"
)

// Bucket state lives in the shared store so every process enforces the same
// limits. last_refill is persisted as epoch nanoseconds: the CAS predicate
// then compares exactly, with no timestamp precision loss on the round trip.

var _ service.BucketStorage = (*Storage)(nil)

func (s *Storage) InsertBucket(ctx context.Context, identity string, action service.LimitAction, state service.BucketState) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
        INSERT INTO rate_buckets (identity, action, tokens, last_refill_ns)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (identity, action) DO NOTHING
    `, identity, string(action), state.Tokens, state.LastRefill.UnixNano())
	if err != nil {
		return false, storeErr("failed to insert rate bucket", err)
	}
	affected, _ := result.RowsAffected()
	return affected == 1, nil
}

func (s *Storage) GetBucket(ctx context.Context, identity string, action service.LimitAction) (service.BucketState, bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var tokens float64
	var refillNs int64
	err := s.db.QueryRowContext(ctx, `
        SELECT tokens, last_refill_ns FROM rate_buckets
        WHERE identity = $1 AND action = $2
    `, identity, string(action)).Scan(&tokens, &refillNs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return service.BucketState{}, false, nil
		}
		return service.BucketState{}, false, storeErr("failed to fetch rate bucket", err)
	}
	return service.BucketState{Tokens: tokens, LastRefill: time.Unix(0, refillNs)}, true, nil
}

// CompareAndSwapBucket succeeds only if the stored state still matches old,
// so concurrent consumers never lose a token update.
func (s *Storage) CompareAndSwapBucket(ctx context.Context, identity string, action service.LimitAction, old, new service.BucketState) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
        UPDATE rate_buckets
        SET tokens = $3, last_refill_ns = $4
        WHERE identity = $1 AND action = $2 AND tokens = $5 AND last_refill_ns = $6
    `, identity, string(action), new.Tokens, new.LastRefill.UnixNano(), old.Tokens, old.LastRefill.UnixNano())
	if err != nil {
		return false, storeErr("failed to swap rate bucket", err)
	}
	affected, _ := result.RowsAffected()
	return affected == 1, nil
}
