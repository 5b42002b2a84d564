package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dn5s/lthread/internal/config"
	"github.com/dn5s/lthread/internal/domain"
	"github.com/dn5s/lthread/internal/logger"
)

var (
	storagePressure = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lthread_storage_pressure_ratio",
		Help: "Estimated storage pressure as a fraction of assumed capacity",
	})
	threadsPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lthread_threads_pruned_total",
		Help: "Total number of threads evicted by the pruning engine",
	}, []string{"board"})
)

// PruneIndex is the board-index surface the pruner needs: sizing for the
// pressure estimate and tail selection for eviction.
type PruneIndex interface {
	ThreadCount(ctx context.Context, board domain.BoardName) (int, error)
	OldestThreadIds(ctx context.Context, board domain.BoardName, count int) ([]domain.ThreadId, error)
}

// ThreadDeleter is the deletion operation. An interface so the pruner reuses
// the board service's delete path, which also releases posts and media.
type ThreadDeleter interface {
	DeleteThread(ctx context.Context, id domain.ThreadId) error
}

// Pruner keeps aggregate storage bounded by periodically measuring pressure
// and evicting the oldest threads per board when over threshold. Storage
// capacity is the only thing that removes content; there is no user deletion
// and no expiry.
type Pruner struct {
	index   PruneIndex
	deleter ThreadDeleter
	cfg     *config.Pruning
	boards  []domain.BoardName

	// sweeping guards against overlapping sweeps: a timer tick or manual
	// trigger arriving mid-sweep is skipped, never run concurrently.
	sweeping atomic.Bool

	mu        sync.Mutex
	lastStats SweepStats
}

// SweepStats tracks metrics from the last sweep.
type SweepStats struct {
	RunAt         time.Time
	Pressure      float64
	Evicted       bool
	ThreadsPruned int
	DurationMs    int64
	Errors        []string
}

func NewPruner(index PruneIndex, deleter ThreadDeleter, cfg *config.Pruning, boards []domain.BoardName) *Pruner {
	return &Pruner{
		index:   index,
		deleter: deleter,
		cfg:     cfg,
		boards:  boards,
	}
}

// Start runs the sweep loop on a fixed interval until ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.CheckInterval)
	logger.Log.Info("started pruning engine",
		"component", "pruner",
		"interval", p.cfg.CheckInterval,
		"threshold", p.cfg.MemoryThreshold,
		"prune_count", p.cfg.PruneCount)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := p.RunSweep(ctx); err != nil {
					logger.Log.Error("pruning sweep failed",
						"component", "pruner", "error", err)
				}
			case <-ctx.Done():
				logger.Log.Info("pruning engine shutting down gracefully",
					"component", "pruner")
				return
			}
		}
	}()
}

// RunSweep executes one measure-then-maybe-evict cycle. If pressure is at or
// under the threshold the sweep is a no-op. The engine never loops within one
// sweep; the next tick re-evaluates.
func (p *Pruner) RunSweep(ctx context.Context) error {
	if !p.sweeping.CompareAndSwap(false, true) {
		logger.Log.Warn("sweep already in progress, skipping tick", "component", "pruner")
		return nil
	}
	defer p.sweeping.Store(false)

	start := time.Now()
	stats := SweepStats{RunAt: start, Errors: []string{}}

	pressure, err := p.pressure(ctx)
	if err != nil {
		return fmt.Errorf("failed to estimate storage pressure: %w", err)
	}
	stats.Pressure = pressure
	storagePressure.Set(pressure)

	if pressure > p.cfg.MemoryThreshold {
		logger.Log.Warn("storage pressure over threshold, evicting",
			"component", "pruner", "pressure", pressure, "threshold", p.cfg.MemoryThreshold)
		stats.Evicted = true
		stats.ThreadsPruned = p.evictOldest(ctx, &stats)

		// Informational only: the sweep does not loop even if still over.
		if after, err := p.pressure(ctx); err == nil {
			logger.Log.Info("pressure after eviction", "component", "pruner", "pressure", after)
			storagePressure.Set(after)
		}
	}

	stats.DurationMs = time.Since(start).Milliseconds()
	p.mu.Lock()
	p.lastStats = stats
	p.mu.Unlock()
	return nil
}

// ForcePrune evicts the oldest threads regardless of current pressure.
// Exposed through the admin trigger.
func (p *Pruner) ForcePrune(ctx context.Context) (int, error) {
	if !p.sweeping.CompareAndSwap(false, true) {
		return 0, fmt.Errorf("sweep already in progress")
	}
	defer p.sweeping.Store(false)

	start := time.Now()
	stats := SweepStats{RunAt: start, Evicted: true, Errors: []string{}}
	pruned := p.evictOldest(ctx, &stats)
	stats.ThreadsPruned = pruned
	stats.DurationMs = time.Since(start).Milliseconds()

	p.mu.Lock()
	p.lastStats = stats
	p.mu.Unlock()
	return pruned, nil
}

// pressure estimates aggregate storage usage. This is a heuristic proxy
// (thread count times an assumed average thread size over an assumed
// capacity), not exact memory accounting.
func (p *Pruner) pressure(ctx context.Context) (float64, error) {
	total := 0
	for _, board := range p.boards {
		count, err := p.index.ThreadCount(ctx, board)
		if err != nil {
			return 0, fmt.Errorf("board '%s': %w", board, err)
		}
		total += count
	}
	estimated := int64(total) * p.cfg.AvgThreadBytes
	return float64(estimated) / float64(p.cfg.CapacityBytes), nil
}

// evictOldest deletes up to PruneCount of the oldest threads per board.
// Per-thread failures are logged and skipped; one bad thread never aborts
// the sweep.
func (p *Pruner) evictOldest(ctx context.Context, stats *SweepStats) int {
	pruned := 0
	for _, board := range p.boards {
		ids, err := p.index.OldestThreadIds(ctx, board, p.cfg.PruneCount)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("board '%s': failed to select oldest threads: %v", board, err))
			continue
		}
		for _, id := range ids {
			if err := p.deleter.DeleteThread(ctx, id); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("board '%s': failed to prune thread %d: %v", board, id, err))
				continue
			}
			logger.Log.Info("pruned thread", "component", "pruner", "board", board, "thread", id)
			threadsPruned.WithLabelValues(board).Inc()
			pruned++
		}
	}
	return pruned
}

// LastSweepStats returns statistics from the most recent sweep.
func (p *Pruner) LastSweepStats() SweepStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastStats
}
