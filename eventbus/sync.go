// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package eventbus

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ManuGH/tickbus/internal/log"
	"github.com/ManuGH/tickbus/internal/metrics"
)

const (
	modeSync  = "sync"
	modeAsync = "async"
)

// SyncBus dispatches every publish on the caller's goroutine. When
// Publish returns, each matched subscriber has been invoked exactly
// once, in dispatch order.
type SyncBus struct {
	reg    *registry
	logger zerolog.Logger
	closed atomic.Bool
}

// NewSyncBus creates a synchronous bus with no subscribers.
func NewSyncBus() *SyncBus {
	return &SyncBus{
		reg:    newRegistry(),
		logger: log.Bus(modeSync),
	}
}

// Publish delivers event to every matched subscriber before returning.
// Nil events and publishes after Close are silently dropped.
func (b *SyncBus) Publish(event any) {
	if event == nil || b.closed.Load() {
		return
	}
	metrics.IncBusPublished(modeSync)
	for _, sub := range b.reg.matching(reflect.TypeOf(event)) {
		deliver(b.logger, modeSync, sub, event)
	}
}

// Subscribe registers sub for every event regardless of type.
func (b *SyncBus) Subscribe(sub Subscriber) error {
	if sub == nil {
		return ErrNilSubscriber
	}
	b.reg.addUniversal(sub)
	return nil
}

// SubscribeType registers sub for events matching tag, covariantly.
func (b *SyncBus) SubscribeType(tag any, sub Subscriber) error {
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
func (b *SyncBus) SubscriberCount() int {
	return b.reg.universalCount()
}

// TypedSubscriberCount reports the number of subscribers registered for
// exactly the given tag.
func (b *SyncBus) TypedSubscriberCount(tag any) int {
	typ, err := resolveTag(tag)
	if err != nil {
		return 0
	}
	return b.reg.typedCount(typ)
}

// Close stops the bus. Subsequent publishes are dropped. Idempotent.
func (b *SyncBus) Close() {
	b.closed.Store(true)
}

// deliver invokes one subscriber, swallowing errors and panics so the
// remaining subscribers still run. The logger already carries the bus
// mode; mode is still needed for the metrics label.
func deliver(logger zerolog.Logger, mode string, sub Subscriber, event any) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncBusHandlerError(mode)
			logger.Error().
				Str(log.FieldEventType, fmt.Sprintf("%T", event)).
				Interface("panic", r).
				Msg("subscriber panicked")
		}
	}()
	if err := sub.Handle(event); err != nil {
		metrics.IncBusHandlerError(mode)
		logger.Error().
			Err(err).
			Str(log.FieldEventType, fmt.Sprintf("%T", event)).
			Msg("subscriber failed")
	}
}

var _ Bus = (*SyncBus)(nil)
