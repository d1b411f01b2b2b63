package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_AcquireRelease(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	ctx := context.Background()

	pool, err := NewPool(ctx, db, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Idle())

	first, err := pool.Acquire(ctx)
	require.NoError(t, err)
	second, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pool.Idle())

	// empty pool opens a fresh connection instead of blocking
	third, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)

	pool.Release(first)
	pool.Release(second)
	assert.Equal(t, 2, pool.Idle())

	// pool is full, the extra connection is closed
	pool.Release(third)
	assert.Equal(t, 2, pool.Idle())

	again, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, first, again, "released connections are reused first in, first out")
	pool.Release(again)
}

func TestPool_Close(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	ctx := context.Background()

	pool, err := NewPool(ctx, db, 2)
	require.NoError(t, err)

	held, err := pool.Acquire(ctx)
	require.NoError(t, err)

	require.NoError(t, pool.Close())
	assert.Equal(t, 0, pool.Idle())
	assert.NoError(t, pool.Close(), "closing twice is a no-op")

	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, ErrPoolClosed)

	pool.Release(held)
	assert.Equal(t, 0, pool.Idle())
}

func TestNewPool_InvalidSize(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)

	_, err = NewPool(context.Background(), db, 0)
	assert.Error(t, err)
}
