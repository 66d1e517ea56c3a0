package store

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	dErrors "masterdata/pkg/domain-errors"
	"masterdata/pkg/platform/tx"
)

// numShards spreads per-entity units of work over a fixed set of mutexes so
// unrelated entities rarely contend.
const numShards = 128

// DefaultTxTimeout bounds a unit of work that has no deadline of its own.
const DefaultTxTimeout = 5 * time.Second

type heldShard struct{}

// ShardedTx serializes in-memory units of work per shard key (see
// tx.WithShardKey). Work without a key runs on shard 0.
type ShardedTx struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTx(timeout time.Duration) *ShardedTx {
	return &ShardedTx{timeout: timeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	// Nested units of work join the enclosing one.
	if ctx.Value(heldShard{}) != nil {
		return fn(ctx)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := selectShard(tx.ShardKey(ctx))
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(context.WithValue(ctx, heldShard{}, shard))
}

func selectShard(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % numShards)
}
