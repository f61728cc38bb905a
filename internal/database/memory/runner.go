package memory

import (
	"context"
	"sync"
	"time"

	"koroflow/internal/database"
	dErrors "koroflow/pkg/domain-errors"
)

// The in-memory backend has no transactions, so the unit-of-work boundary
// is a lock. A single global mutex would serialize unrelated subjects, so
// the runner shards by the identity key carried in the context: work for
// the same subject is serialized, work for different subjects proceeds in
// parallel.
const numShards = 128

// defaultTxTimeout bounds a unit of work so a stuck callback cannot hold a
// shard forever.
const defaultTxTimeout = 5 * time.Second

// Runner is the lock-based unit of work over a memory store.
type Runner struct {
	shards  [numShards]sync.Mutex
	store   *Store
	timeout time.Duration
}

func NewRunner(store *Store) *Runner {
	return &Runner{store: store}
}

func (r *Runner) RunInTx(ctx context.Context, fn func(ctx context.Context, a database.Adapter) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "unit of work aborted: context cancelled")
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := r.selectShard(ctx)
	r.shards[shard].Lock()
	defer r.shards[shard].Unlock()

	// Re-check after acquiring the lock; waiting may have eaten the budget.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "unit of work aborted: context cancelled")
	}

	return fn(ctx, r.store)
}

func (r *Runner) selectShard(ctx context.Context) int {
	if key, ok := database.TxKey(ctx); ok && key != "" {
		return int(fnv1a(key) % numShards)
	}
	return 0
}

// fnv1a gives a well-distributed shard index for short identity strings.
func fnv1a(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
