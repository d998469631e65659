package conc

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestPoolSubmit(t *testing.T) {
	pool := NewPool[int](4)
	defer pool.Release()
	assert.Equal(t, 4, pool.Cap())

	futures := make([]*Future[int], 0, 16)
	for i := 0; i < 16; i++ {
		i := i
		futures = append(futures, pool.Submit(func() (int, error) {
			return i * i, nil
		}))
	}
	require.NoError(t, AwaitAll(futures...))
	for i, f := range futures {
		assert.True(t, f.Done())
		assert.Equal(t, i*i, f.Value())
	}
}

func TestPoolError(t *testing.T) {
	pool := NewPool[int](2)
	defer pool.Release()

	boom := errors.New("boom")
	ok := pool.Submit(func() (int, error) { return 1, nil })
	bad := pool.Submit(func() (int, error) { return 0, boom })

	assert.ErrorIs(t, AwaitAll(ok, bad), boom)
	v, err := bad.Await()
	assert.Zero(t, v)
	assert.ErrorIs(t, err, boom)
	assert.True(t, ok.OK())
}

func TestPoolConcealPanic(t *testing.T) {
	var handled atomic.Bool
	pool := NewPool[int](1, WithConcealPanic(true), WithPanicHandler(func(any) {
		handled.Store(true)
	}))
	defer pool.Release()

	f := pool.Submit(func() (int, error) { panic("bad task") })
	assert.Error(t, f.Err())
	assert.Eventually(t, handled.Load, time.Second, 10*time.Millisecond)

	// 池在 panic 之后仍然可用。
	assert.Equal(t, 7, pool.Submit(func() (int, error) { return 7, nil }).Value())
}

func TestPoolPreHandler(t *testing.T) {
	var calls atomic.Int32
	pool := NewPool[struct{}](2, WithPreHandler(func() { calls.Inc() }))
	defer pool.Release()

	var futures []*Future[struct{}]
	for i := 0; i < 5; i++ {
		futures = append(futures, pool.Submit(func() (struct{}, error) { return struct{}{}, nil }))
	}
	require.NoError(t, AwaitAll(futures...))
	assert.Equal(t, int32(5), calls.Load())
}

func TestNewPoolDefaultCap(t *testing.T) {
	pool := NewPool[int](0)
	defer pool.Release()
	assert.Greater(t, pool.Cap(), 0)

	def := NewDefaultPool[int]()
	defer def.Release()
	assert.Equal(t, pool.Cap(), def.Cap())
}

func TestPoolOptions(t *testing.T) {
	opt := defaultPoolOption()
	WithPreAlloc(true)(opt)
	WithIdleExpiry(-1)(opt)
	assert.True(t, opt.preAlloc)
	assert.Len(t, opt.antsOptions(), 4)

	WithIdleExpiry(0)(opt)
	assert.Len(t, opt.antsOptions(), 3)

	pool := NewPool[int](2, WithPreAlloc(true), WithIdleExpiry(50*time.Millisecond))
	defer pool.Release()
	assert.Equal(t, 3, pool.Submit(func() (int, error) { return 3, nil }).Value())

	never := NewPool[int](2, WithIdleExpiry(-1))
	defer never.Release()
	assert.Equal(t, 4, never.Submit(func() (int, error) { return 4, nil }).Value())
}
