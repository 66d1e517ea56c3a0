package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "masterdata/pkg/domain-errors"
	"masterdata/pkg/platform/tx"
)

func TestShardedTx(t *testing.T) {
	t.Run("cancelled context is rejected before locking", func(t *testing.T) {
		runner := NewShardedTx(0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		called := false
		err := runner.RunInTx(ctx, func(context.Context) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
		assert.False(t, called)
	})

	t.Run("same key serializes", func(t *testing.T) {
		runner := NewShardedTx(time.Second)
		ctx := tx.WithShardKey(context.Background(), "entity-1")
		var mu sync.Mutex
		active, maxActive := 0, 0
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = runner.RunInTx(ctx, func(context.Context) error {
					mu.Lock()
					active++
					if active > maxActive {
						maxActive = active
					}
					mu.Unlock()
					time.Sleep(time.Millisecond)
					mu.Lock()
					active--
					mu.Unlock()
					return nil
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, maxActive)
	})

	t.Run("nested units join the enclosing one", func(t *testing.T) {
		runner := NewShardedTx(time.Second)
		ctx := tx.WithShardKey(context.Background(), "entity-2")
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			return runner.RunInTx(ctx, func(context.Context) error { return nil })
		})
		assert.NoError(t, err)
	})

	t.Run("applies default deadline", func(t *testing.T) {
		runner := NewShardedTx(50 * time.Millisecond)
		err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		})
		assert.NoError(t, err)
	})
}

func TestSelectShard(t *testing.T) {
	assert.Equal(t, 0, selectShard(""))
	assert.Equal(t, selectShard("abc"), selectShard("abc"))
	assert.Less(t, selectShard("abc"), numShards)
}
