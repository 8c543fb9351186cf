// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package eventbus implements in-process event distribution for
// latency-sensitive pipelines.
//
// Two delivery disciplines are provided. SyncBus dispatches on the
// publisher's goroutine and returns only after every matched subscriber
// ran. AsyncBus decouples publishers from subscribers through an
// unbounded queue drained by a single goroutine that fans out to a
// worker pool, optionally coalescing bursts so at most the latest value
// per event type is delivered.
//
// Subscriptions are matched covariantly: a subscriber registered for an
// interface type receives every event whose dynamic type implements it.
// Registering for the empty interface is equivalent to a universal
// subscription. Type tags are passed as values or typed nil pointers:
//
//	bus.SubscribeType(MarketData{}, sub)        // concrete type
//	bus.SubscribeType((*fmt.Stringer)(nil), sub) // interface type
//	bus.SubscribeType((*any)(nil), sub)          // every event
//
// Subscriber failures never escape the bus: errors and panics are
// logged, counted, and dispatch continues with the next subscriber.
package eventbus
