package monitor

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corekeepalive "github.com/dep2p/go-keepalive/internal/core/keepalive"
)

func newTestRegistry(t *testing.T, maxSessions int) *Registry {
	t.Helper()

	r, err := NewRegistry(corekeepalive.DefaultConfig(), maxSessions, WithClock(clock.NewMock()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRegistry_TrackAndGet(t *testing.T) {
	r := newTestRegistry(t, 4)
	ctx := context.Background()

	m, err := r.Track(ctx, "session-a", &mockSender{})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get("session-a")
	require.True(t, ok)
	assert.Same(t, m, got)

	_, ok = r.Get("session-b")
	assert.False(t, ok)
}

func TestRegistry_DuplicateTrack(t *testing.T) {
	r := newTestRegistry(t, 4)
	ctx := context.Background()

	_, err := r.Track(ctx, "session-a", &mockSender{})
	require.NoError(t, err)

	_, err = r.Track(ctx, "session-a", &mockSender{})
	assert.ErrorIs(t, err, ErrAlreadyTracking)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_UntrackStopsMonitor(t *testing.T) {
	r := newTestRegistry(t, 4)
	ctx := context.Background()

	m, err := r.Track(ctx, "session-a", &mockSender{})
	require.NoError(t, err)

	require.NoError(t, r.Untrack("session-a"))
	assert.Equal(t, 0, r.Len())

	// 淘汰回调同步停止监控
	mon := m.(*Monitor)
	assert.EqualValues(t, 1, atomic.LoadInt32(&mon.closed))

	assert.ErrorIs(t, r.Untrack("session-a"), ErrNotTracking)
}

func TestRegistry_EvictsOldest(t *testing.T) {
	r := newTestRegistry(t, 2)
	ctx := context.Background()

	a, err := r.Track(ctx, "session-a", &mockSender{})
	require.NoError(t, err)
	_, err = r.Track(ctx, "session-b", &mockSender{})
	require.NoError(t, err)

	// 超出容量：最久未使用的会话被淘汰并停止
	_, err = r.Track(ctx, "session-c", &mockSender{})
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	_, ok := r.Get("session-a")
	assert.False(t, ok)
	assert.EqualValues(t, 1, atomic.LoadInt32(&a.(*Monitor).closed))

	_, ok = r.Get("session-b")
	assert.True(t, ok)
	_, ok = r.Get("session-c")
	assert.True(t, ok)
}

func TestRegistry_Close(t *testing.T) {
	r := newTestRegistry(t, 4)
	ctx := context.Background()

	a, err := r.Track(ctx, "session-a", &mockSender{})
	require.NoError(t, err)
	b, err := r.Track(ctx, "session-b", &mockSender{})
	require.NoError(t, err)

	require.NoError(t, r.Close())

	assert.EqualValues(t, 1, atomic.LoadInt32(&a.(*Monitor).closed))
	assert.EqualValues(t, 1, atomic.LoadInt32(&b.(*Monitor).closed))
	assert.Equal(t, 0, r.Len())

	_, err = r.Track(ctx, "session-c", &mockSender{})
	assert.ErrorIs(t, err, ErrRegistryClosed)

	// 重复关闭无副作用
	assert.NoError(t, r.Close())
}

func TestRegistry_CloseConcurrentWithTrack(t *testing.T) {
	// Track 与 Close 竞争时，成功追踪的监控绝不能逃过 Close
	for i := 0; i < 100; i++ {
		r, err := NewRegistry(corekeepalive.DefaultConfig(), 4, WithClock(clock.NewMock()))
		require.NoError(t, err)

		tracked := make(chan *Monitor, 1)
		go func() {
			m, err := r.Track(context.Background(), "session-a", &mockSender{})
			if err != nil {
				tracked <- nil
				return
			}
			tracked <- m.(*Monitor)
		}()

		require.NoError(t, r.Close())

		if m := <-tracked; m != nil {
			assert.EqualValues(t, 1, atomic.LoadInt32(&m.closed))
		}
	}
}

func TestRegistry_DefaultCapacity(t *testing.T) {
	r, err := NewRegistry(corekeepalive.DefaultConfig(), 0, WithClock(clock.NewMock()))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 0, r.Len())
}
