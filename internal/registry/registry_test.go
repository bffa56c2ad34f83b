package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kmeanslab"
	"github.com/hupe1980/kmeanslab/resource"
)

func TestRegistry_CreateGetDelete(t *testing.T) {
	r := New(10, WithSessionOptions(kmeanslab.WithSeed(7)))

	h := r.Create()
	require.NotEmpty(t, h.ID)
	assert.Equal(t, uint64(7), h.Session.Seed())

	got, err := r.Get(h.ID)
	require.NoError(t, err)
	assert.Same(t, h, got)

	assert.True(t, r.Delete(h.ID))
	assert.False(t, r.Delete(h.ID))

	_, err = r.Get(h.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Get("not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Eviction(t *testing.T) {
	var evicted []string

	rc := resource.NewController(resource.Config{})
	r := New(2, WithResourceController(rc), WithEvictionCallback(func(id string) { evicted = append(evicted, id) }))

	a := r.Create()
	a.Lock()
	require.NoError(t, a.SetData(context.Background(), [][]float64{{1, 2}, {3, 4}}))
	a.Unlock()
	assert.Equal(t, int64(32), rc.MemoryUsage())

	b := r.Create()
	_, err := r.Get(b.ID)
	require.NoError(t, err)

	c := r.Create()

	assert.Equal(t, []string{a.ID}, evicted)
	assert.Equal(t, []string{c.ID, b.ID}, r.IDs())
	assert.Zero(t, rc.MemoryUsage())

	stats := r.Stats()
	assert.Equal(t, 2, stats.Sessions)
	assert.Equal(t, int64(1), stats.Evicted)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestHandle_MemoryLimit(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 40})
	r := New(10, WithResourceController(rc))

	h := r.Create()
	h.Lock()
	defer h.Unlock()

	require.NoError(t, h.SetData(context.Background(), [][]float64{{1, 2}, {3, 4}}))
	assert.ErrorIs(t, h.SetData(context.Background(), [][]float64{{1, 2}, {3, 4}, {5, 6}}), ErrMemoryLimit)
	assert.Len(t, h.Data(), 2)

	require.NoError(t, h.SetData(context.Background(), [][]float64{{1, 2}}))
	assert.Equal(t, int64(16), rc.MemoryUsage())
}

func TestHandle_MemoryQueueTimeout(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 32})
	r := New(10, WithResourceController(rc), WithQueueTimeout(time.Second))

	a := r.Create()
	a.Lock()
	require.NoError(t, a.SetData(ctx, [][]float64{{1, 2}, {3, 4}}))
	a.Unlock()

	go func() {
		time.Sleep(20 * time.Millisecond)
		r.Delete(a.ID)
	}()

	b := r.Create()
	b.Lock()
	defer b.Unlock()

	require.NoError(t, b.SetData(ctx, [][]float64{{1, 2}}))
	assert.Equal(t, int64(16), rc.MemoryUsage())

	t.Run("Timeout", func(t *testing.T) {
		short := New(10, WithResourceController(rc), WithQueueTimeout(10*time.Millisecond))

		h := short.Create()
		h.Lock()
		defer h.Unlock()

		err := h.SetData(ctx, [][]float64{{1, 2}, {3, 4}})
		assert.ErrorIs(t, err, ErrMemoryLimit)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Empty(t, h.Data())
	})

	t.Run("LargerThanBudget", func(t *testing.T) {
		h := r.Create()
		h.Lock()
		defer h.Unlock()

		err := h.SetData(ctx, [][]float64{{1, 2, 3, 4, 5}})
		assert.ErrorIs(t, err, ErrMemoryLimit)
		assert.ErrorIs(t, err, resource.ErrMemoryLimit)
	})
}

func TestRegistry_Restore(t *testing.T) {
	ctx := context.Background()
	r := New(10)

	s := kmeanslab.NewSession(kmeanslab.WithSeed(3))
	data := [][]float64{{0, 0}, {0, 1}, {10, 0}, {10, 1}}
	require.NoError(t, s.Initialize(ctx, kmeanslab.Config{K: 2, Init: kmeanslab.InitManual, MaxIter: 10}, data, [][]float64{{0, 0}, {10, 0}}))

	h, err := r.Restore(ctx, s.Snapshot())
	require.NoError(t, err)

	assert.Equal(t, kmeanslab.StateInitialized, h.Session.State())
	assert.Equal(t, data, h.Data())
	assert.Equal(t, 1, r.Len())

	bad := s.Snapshot()
	bad.Config.K = 9
	_, err = r.Restore(ctx, bad)
	assert.Error(t, err)
	assert.Equal(t, 1, r.Len())
}
