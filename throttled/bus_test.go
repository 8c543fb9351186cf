// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package throttled

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/tickbus/eventbus"
	"github.com/ManuGH/tickbus/throttle"
)

func newThrottler(t *testing.T, maxOps int, window time.Duration) *throttle.RollingWindow {
	t.Helper()
	th, err := throttle.NewRollingWindow(maxOps, window)
	require.NoError(t, err)
	return th
}

func TestThrottledPublishForwardsWithCapacity(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	delegate := eventbus.NewSyncBus()
	th := newThrottler(t, 100, time.Second)
	defer th.Close()

	bus := New(delegate, th)
	defer bus.Close()

	var delivered atomic.Int32
	require.NoError(t, bus.Subscribe(eventbus.HandlerFunc(func(any) error {
		delivered.Add(1)
		return nil
	})))

	bus.Publish("direct")

	assert.Equal(t, int32(1), delivered.Load(), "capacity available, no buffering")
	assert.Zero(t, bus.PendingEventCount())
}

func TestThrottledBuffersWhenDenied(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	delegate := eventbus.NewSyncBus()
	th := newThrottler(t, 1, time.Minute)
	defer th.Close()

	bus := New(delegate, th)

	var delivered atomic.Int32
	require.NoError(t, bus.Subscribe(eventbus.HandlerFunc(func(any) error {
		delivered.Add(1)
		return nil
	})))

	bus.Publish("first")
	bus.Publish("second")
	bus.Publish("third")

	assert.Equal(t, int32(1), delivered.Load())
	// The drainer may hold one popped event while being denied, so the
	// observable pending count is 1 or 2.
	pending := bus.PendingEventCount()
	assert.GreaterOrEqual(t, pending, 1)
	assert.LessOrEqual(t, pending, 2)

	// Close flushes the buffer directly to the delegate.
	bus.Close()
	bus.Close() // idempotent
	assert.Equal(t, int32(3), delivered.Load())
	assert.Zero(t, bus.PendingEventCount())
}

func TestThrottledDrainsBufferedEvents(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	delegate := eventbus.NewSyncBus()
	th := newThrottler(t, 1, 50*time.Millisecond)
	defer th.Close()

	bus := New(delegate, th)
	defer bus.Close()

	var mu sync.Mutex
	var got []any
	require.NoError(t, bus.Subscribe(eventbus.HandlerFunc(func(event any) error {
		mu.Lock()
		got = append(got, event)
		mu.Unlock()
		return nil
	})))

	for i := 0; i < 5; i++ {
		bus.Publish(i)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	}, 3*time.Second, 10*time.Millisecond)

	// The drainer and the wakeup callback may interleave, so only the
	// delivery set is asserted, not a strict order.
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []any{0, 1, 2, 3, 4}, got)
}

func TestThrottledDropsNilAndLatePublishes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	delegate := eventbus.NewSyncBus()
	th := newThrottler(t, 10, time.Second)
	defer th.Close()

	bus := New(delegate, th)

	var delivered atomic.Int32
	require.NoError(t, bus.Subscribe(eventbus.HandlerFunc(func(any) error {
		delivered.Add(1)
		return nil
	})))

	bus.Publish(nil)
	bus.Close()
	bus.Publish("late")

	assert.Zero(t, delivered.Load())
}

func TestThrottledSubscribeTypeForwards(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	delegate := eventbus.NewSyncBus()
	th := newThrottler(t, 10, time.Second)
	defer th.Close()

	bus := New(delegate, th)
	defer bus.Close()

	var ints atomic.Int32
	require.NoError(t, bus.SubscribeType(0, eventbus.HandlerFunc(func(any) error {
		ints.Add(1)
		return nil
	})))

	bus.Publish(7)
	bus.Publish("not an int")

	assert.Equal(t, int32(1), ints.Load())
}

func TestThrottledHighVolumeObeysWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("multi-second wall-clock scenario")
	}
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	delegate := eventbus.NewSyncBus()
	th := newThrottler(t, 10, time.Second)
	defer th.Close()

	bus := New(delegate, th)
	defer bus.Close()

	var delivered atomic.Int32
	require.NoError(t, bus.Subscribe(eventbus.HandlerFunc(func(any) error {
		delivered.Add(1)
		return nil
	})))

	started := time.Now()
	for i := 0; i < 50; i++ {
		bus.Publish(i)
	}

	require.Eventually(t, func() bool {
		return delivered.Load() == 50
	}, 15*time.Second, 20*time.Millisecond)

	elapsed := time.Since(started)
	assert.GreaterOrEqual(t, elapsed, 4*time.Second,
		"50 events at 10 per rolling second cannot finish before the fifth window")
	assert.Zero(t, bus.PendingEventCount())
}
