// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package eventbus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/tickbus/internal/log"
	"github.com/ManuGH/tickbus/internal/metrics"
)

const (
	// drainPollInterval bounds how long the drainer sleeps without a
	// wakeup signal, keeping shutdown responsive.
	drainPollInterval = 100 * time.Millisecond

	// closeGracePeriod bounds how long Close waits for in-flight
	// subscriber invocations.
	closeGracePeriod = 5 * time.Second
)

// entry is one queued publication.
type entry struct {
	event any
	typ   reflect.Type
	at    time.Time
}

// AsyncBus queues publications and dispatches them from a dedicated
// drainer goroutine, fanning each delivery out to a worker pool. With
// coalescing enabled, at most one queue slot exists per event type and
// the drainer delivers the most recent value observed for that type.
type AsyncBus struct {
	reg    *registry
	logger zerolog.Logger

	coalesce bool
	workers  int

	// queue state, all guarded by mu. queued and latest are only
	// populated in coalescing mode; the invariant is that a type is in
	// queued exactly when one placeholder slot for it sits in queue.
	mu     sync.Mutex
	queue  []entry
	latest map[reflect.Type]entry
	queued map[reflect.Type]struct{}

	wakeup chan struct{}
	tasks  chan func()

	ctx         context.Context
	cancel      context.CancelFunc
	drainerDone chan struct{}
	workerWG    sync.WaitGroup
	handlerWG   sync.WaitGroup

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewAsyncBus creates an asynchronous bus and starts its drainer.
func NewAsyncBus(opts ...AsyncOption) *AsyncBus {
	var settings asyncSettings
	for _, opt := range opts {
		opt(&settings)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &AsyncBus{
		reg:         newRegistry(),
		logger:      log.Bus(modeAsync),
		coalesce:    settings.coalesce,
		workers:     settings.workers,
		latest:      make(map[reflect.Type]entry),
		queued:      make(map[reflect.Type]struct{}),
		wakeup:      make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
		drainerDone: make(chan struct{}),
	}

	if b.workers > 0 {
		b.tasks = make(chan func())
		for i := 0; i < b.workers; i++ {
			b.workerWG.Add(1)
			go func() {
				defer b.workerWG.Done()
				for task := range b.tasks {
					task()
				}
			}()
		}
	}

	go b.drain()
	b.logger.Debug().
		Int(log.FieldWorkers, b.workers).
		Bool("coalesce", b.coalesce).
		Msg("async bus started")
	return b
}

// Publish enqueues event for asynchronous delivery. It never blocks on
// subscriber progress. Nil events and publishes after Close are
// silently dropped.
func (b *AsyncBus) Publish(event any) {
	if event == nil || b.closed.Load() {
		return
	}
	e := entry{event: event, typ: reflect.TypeOf(event), at: time.Now()}

	b.mu.Lock()
	if b.coalesce {
		b.latest[e.typ] = e
		if _, alreadyQueued := b.queued[e.typ]; alreadyQueued {
			b.mu.Unlock()
			metrics.BusCoalescedTotal.Inc()
			metrics.IncBusPublished(modeAsync)
			return
		}
		b.queued[e.typ] = struct{}{}
	}
	b.queue = append(b.queue, e)
	depth := len(b.queue)
	b.mu.Unlock()

	metrics.IncBusPublished(modeAsync)
	metrics.BusQueueDepth.Set(float64(depth))

	select {
	case b.wakeup <- struct{}{}:
	default:
	}
}

// Subscribe registers sub for every event regardless of type.
func (b *AsyncBus) Subscribe(sub Subscriber) error {
	if sub == nil {
		return ErrNilSubscriber
	}
	b.reg.addUniversal(sub)
	return nil
}

// SubscribeType registers sub for events matching tag, covariantly.
func (b *AsyncBus) SubscribeType(tag any, sub Subscriber) error {
	if sub == nil {
		return ErrNilSubscriber
	}
	typ, err := resolveTag(tag)
	if err != nil {
		return err
	}
	b.reg.addTyped(typ, sub)
	return nil
}

// SubscriberCount reports the number of universal subscribers.
func (b *AsyncBus) SubscriberCount() int {
	return b.reg.universalCount()
}

// TypedSubscriberCount reports the number of subscribers registered for
// exactly the given tag.
func (b *AsyncBus) TypedSubscriberCount(tag any) int {
	typ, err := resolveTag(tag)
	if err != nil {
		return 0
	}
	return b.reg.typedCount(typ)
}

// QueueDepth reports the number of entries waiting for the drainer.
func (b *AsyncBus) QueueDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// drain runs on a dedicated goroutine, consuming the queue until Close.
func (b *AsyncBus) drain() {
	defer close(b.drainerDone)

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		default:
		}
		if e, ok := b.next(); ok {
			b.dispatch(e)
			continue
		}
		select {
		case <-b.ctx.Done():
			return
		case <-b.wakeup:
		case <-ticker.C:
		}
	}
}

// next pops the head of the queue. In coalescing mode it substitutes
// the latest value recorded for the entry's type when that value is at
// least as fresh, then clears the type's coalescing state so the next
// publish claims a new slot.
func (b *AsyncBus) next() (entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) == 0 {
		return entry{}, false
	}
	e := b.queue[0]
	b.queue = b.queue[1:]
	if b.coalesce {
		if latest, ok := b.latest[e.typ]; ok && !latest.at.Before(e.at) {
			e = latest
		}
		delete(b.latest, e.typ)
		delete(b.queued, e.typ)
	}
	metrics.BusQueueDepth.Set(float64(len(b.queue)))
	return e, true
}

// dispatch fans one event out to the pool. Events of different types
// may be reordered by concurrent workers; that is accepted.
func (b *AsyncBus) dispatch(e entry) {
	for _, sub := range b.reg.matching(e.typ) {
		sub := sub
		task := func() { deliver(b.logger, modeAsync, sub, e.event) }
		if b.tasks != nil {
			select {
			case b.tasks <- task:
			case <-b.ctx.Done():
				return
			}
			continue
		}
		b.handlerWG.Add(1)
		go func() {
			defer b.handlerWG.Done()
			task()
		}()
	}
}

// Close stops the drainer and waits up to the grace period for queued
// subscriber invocations to finish. Events still in the queue are
// discarded. Idempotent.
func (b *AsyncBus) Close() {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		b.cancel()
		<-b.drainerDone
		if b.tasks != nil {
			close(b.tasks)
		}

		done := make(chan struct{})
		go func() {
			b.workerWG.Wait()
			b.handlerWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(closeGracePeriod):
			b.logger.Warn().
				Dur(log.FieldDelay, closeGracePeriod).
				Int(log.FieldQueueDepth, b.QueueDepth()).
				Msg("subscribers still running after close grace period")
		}
	})
}

var _ Bus = (*AsyncBus)(nil)
