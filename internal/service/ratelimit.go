package service

import (
	"context"
	"time"

	"github.com/dn5s/lthread/internal/logger"
)

// LimitAction is the class of write traffic a bucket guards. Each
// (identity, action) pair owns an independent bucket.
type LimitAction string

const (
	ActionGeneral      LimitAction = "general"
	ActionThreadCreate LimitAction = "thread_create"
	ActionPostReply    LimitAction = "post_reply"
)

// LimitSpec is a token-bucket shape: capacity and steady refill in
// tokens per second.
type LimitSpec struct {
	Capacity   float64
	RefillRate float64
}

var limitSpecs = map[LimitAction]LimitSpec{
	ActionGeneral:      {Capacity: 60, RefillRate: 1},       // 60 per minute
	ActionThreadCreate: {Capacity: 1, RefillRate: 1.0 / 30}, // 1 per 30s
	ActionPostReply:    {Capacity: 1, RefillRate: 1.0 / 10}, // 1 per 10s
}

// BucketState is the persisted bucket: remaining tokens and the moment of the
// last refill. Ephemeral, no cross-restart durability required.
type BucketState struct {
	Tokens     float64
	LastRefill time.Time
}

// BucketStorage is the shared-store surface the limiter coordinates through.
// No in-process locks span requests; lost updates are prevented by
// compare-and-swap on the full bucket state.
type BucketStorage interface {
	// InsertBucket stores state only if the bucket does not exist yet and
	// reports whether this caller won the insert.
	InsertBucket(ctx context.Context, identity string, action LimitAction, state BucketState) (bool, error)
	// GetBucket returns the current state and whether the bucket exists.
	GetBucket(ctx context.Context, identity string, action LimitAction) (BucketState, bool, error)
	// CompareAndSwapBucket replaces old with new only if the stored state
	// still equals old, reporting whether the swap happened.
	CompareAndSwapBucket(ctx context.Context, identity string, action LimitAction, old, new BucketState) (bool, error)
}

type RateLimiter struct {
	storage BucketStorage
	now     func() time.Time
}

// casMaxRetries bounds the optimistic update loop. On sustained contention we
// fail closed: denying one legitimate request is cheaper than losing a token
// update.
const casMaxRetries = 4

func NewRateLimiter(storage BucketStorage) *RateLimiter {
	return &RateLimiter{storage: storage, now: time.Now}
}

// Allow attempts to consume one token from the (identity, action) bucket,
// refilling lazily from elapsed time. Write requests must pass both their
// action-class gate and the General gate; callers check each independently.
func (rl *RateLimiter) Allow(ctx context.Context, identity string, action LimitAction) (bool, error) {
	spec, ok := limitSpecs[action]
	if !ok {
		spec = limitSpecs[ActionGeneral]
	}
	now := rl.now()

	// Fresh bucket: start full, consume one immediately.
	inserted, err := rl.storage.InsertBucket(ctx, identity, action, BucketState{Tokens: spec.Capacity - 1, LastRefill: now})
	if err != nil {
		return false, err
	}
	if inserted {
		return true, nil
	}

	for attempt := 0; attempt < casMaxRetries; attempt++ {
		current, found, err := rl.storage.GetBucket(ctx, identity, action)
		if err != nil {
			return false, err
		}
		if !found {
			// Bucket vanished between insert and get; retry the insert.
			inserted, err := rl.storage.InsertBucket(ctx, identity, action, BucketState{Tokens: spec.Capacity - 1, LastRefill: now})
			if err != nil {
				return false, err
			}
			if inserted {
				return true, nil
			}
			continue
		}

		refilled := Refill(current, spec, now)
		allowed := refilled.Tokens >= 1
		next := refilled
		if allowed {
			next.Tokens--
		}

		swapped, err := rl.storage.CompareAndSwapBucket(ctx, identity, action, current, next)
		if err != nil {
			return false, err
		}
		if swapped {
			return allowed, nil
		}
	}

	logger.Log.Warn("rate limiter cas contention, denying request",
		"identity", identity, "action", string(action))
	return false, nil
}

// Refill applies lazy token refill, clamped to capacity. Pure function of the
// stored state and elapsed time, so recomputing it concurrently is harmless.
func Refill(state BucketState, spec LimitSpec, now time.Time) BucketState {
	elapsed := now.Sub(state.LastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	tokens := state.Tokens + elapsed*spec.RefillRate
	if tokens > spec.Capacity {
		tokens = spec.Capacity
	}
	return BucketState{Tokens: tokens, LastRefill: now}
}

// Spec returns the configured bucket shape for an action class.
func Spec(action LimitAction) LimitSpec {
	return limitSpecs[action]
}
