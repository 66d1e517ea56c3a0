// Package tx carries transaction state through context so stores can join an
// enclosing unit of work without widening their signatures.
package tx

import (
	"context"
	"database/sql"
)

type (
	ctxKey      struct{}
	shardKeyCtx struct{}
)

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// WithShardKey records the aggregate a unit of work is scoped to. In-memory
// runners use it to pick a lock shard; SQL runners ignore it.
func WithShardKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, shardKeyCtx{}, key)
}

// ShardKey returns the key set by WithShardKey, or "".
func ShardKey(ctx context.Context) string {
	key, _ := ctx.Value(shardKeyCtx{}).(string)
	return key
}
