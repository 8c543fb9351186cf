// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package throttled composes an event bus behind a throttler:
// publications are forwarded while capacity exists and buffered
// otherwise, draining as the window reopens.
package throttled

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/tickbus/eventbus"
	"github.com/ManuGH/tickbus/internal/log"
	"github.com/ManuGH/tickbus/internal/metrics"
	"github.com/ManuGH/tickbus/throttle"
)

const (
	// drainPollInterval bounds the drainer's wait so shutdown stays
	// responsive even when no wakeup arrives.
	drainPollInterval = 100 * time.Millisecond

	// denyBackoff is how long the drainer pauses after the throttler
	// refuses the head of the pending queue. Progress is guaranteed by
	// polling even if a wakeup callback is missed.
	denyBackoff = 10 * time.Millisecond

	// closeJoinTimeout caps how long Close waits for the drainer.
	closeJoinTimeout = time.Second
)

// Bus wraps a delegate bus behind a throttler. Each forwarded event
// consumes exactly one admission because forwarding is always preceded
// by a successful poll. The exception is Close, which flushes the
// remaining buffer without consulting the throttler, trading rate
// fidelity for delivery.
type Bus struct {
	delegate  eventbus.Bus
	throttler throttle.Throttler
	logger    zerolog.Logger

	mu      sync.Mutex
	pending []any

	wakeup chan struct{}

	ctx         context.Context
	cancel      context.CancelFunc
	drainerDone chan struct{}

	running   atomic.Bool
	closeOnce sync.Once
}

// New wires delegate behind throttler and starts the drainer. The
// adapter registers its own wakeup callback so buffered events flush
// the moment capacity returns.
func New(delegate eventbus.Bus, throttler throttle.Throttler) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		delegate:    delegate,
		throttler:   throttler,
		logger:      log.Component("throttled"),
		wakeup:      make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
		drainerDone: make(chan struct{}),
	}
	b.running.Store(true)
	go b.drain()
	throttler.NotifyWhenCanProceed(throttle.CallbackFunc(b.flushPending))
	return b
}

// Publish forwards event immediately when the throttler admits it and
// buffers it otherwise. Nil events and publishes after Close are
// silently dropped.
func (b *Bus) Publish(event any) {
	if event == nil || !b.running.Load() {
		return
	}
	if b.throttler.ShouldProceed() == throttle.Proceed {
		b.delegate.Publish(event)
		return
	}

	b.mu.Lock()
	b.pending = append(b.pending, event)
	depth := len(b.pending)
	b.mu.Unlock()

	metrics.ThrottledPendingEvents.Set(float64(depth))
	select {
	case b.wakeup <- struct{}{}:
	default:
	}
}

// Subscribe forwards to the delegate bus.
func (b *Bus) Subscribe(sub eventbus.Subscriber) error {
	return b.delegate.Subscribe(sub)
}

// SubscribeType forwards to the delegate bus.
func (b *Bus) SubscribeType(tag any, sub eventbus.Subscriber) error {
	return b.delegate.SubscribeType(tag, sub)
}

// PendingEventCount reports the number of buffered events.
func (b *Bus) PendingEventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// drain retries the head of the pending queue until admitted, backing
// off briefly on every denial.
func (b *Bus) drain() {
	defer close(b.drainerDone)

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-b.wakeup:
		case <-ticker.C:
		}

		for b.running.Load() {
			event, ok := b.popFront()
			if !ok {
				break
			}
			if b.throttler.ShouldProceed() == throttle.Proceed {
				b.delegate.Publish(event)
				continue
			}
			b.pushFront(event)
			select {
			case <-b.ctx.Done():
				return
			case <-time.After(denyBackoff):
			}
		}
	}
}

// flushPending is the throttler wakeup handler: forward buffered events
// until the queue empties or the throttler denies again.
func (b *Bus) flushPending() {
	for b.running.Load() {
		event, ok := b.popFront()
		if !ok {
			return
		}
		if b.throttler.ShouldProceed() != throttle.Proceed {
			b.pushFront(event)
			return
		}
		b.delegate.Publish(event)
	}
}

func (b *Bus) popFront() (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil, false
	}
	event := b.pending[0]
	b.pending = b.pending[1:]
	metrics.ThrottledPendingEvents.Set(float64(len(b.pending)))
	return event, true
}

func (b *Bus) pushFront(event any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append([]any{event}, b.pending...)
	metrics.ThrottledPendingEvents.Set(float64(len(b.pending)))
}

// Close stops the drainer, waits up to a second for it, then flushes
// any remaining buffered events directly to the delegate without
// consulting the throttler. Idempotent.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.running.Store(false)
		b.cancel()
		select {
		case <-b.drainerDone:
		case <-time.After(closeJoinTimeout):
			b.logger.Warn().
				Int(log.FieldPending, b.PendingEventCount()).
				Msg("drainer did not stop within join timeout")
		}

		if remaining := b.PendingEventCount(); remaining > 0 {
			b.logger.Info().
				Int(log.FieldPending, remaining).
				Msg("flushing buffered events on close")
		}
		for {
			event, ok := b.popFront()
			if !ok {
				break
			}
			b.delegate.Publish(event)
		}
	})
}

var _ eventbus.Bus = (*Bus)(nil)
