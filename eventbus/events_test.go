// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package eventbus

import "sync"

// Sample event types shared by the bus tests. The bus itself never
// inspects event contents.

type MarketData struct {
	Symbol string
	Price  float64
	Volume int64
}

type Trade struct {
	ID     string
	Symbol string
	Price  float64
	Qty    int64
	Side   string
}

// priced is implemented by both sample event types and exercises
// covariant interface matching.
type priced interface {
	PriceOf() float64
}

func (m MarketData) PriceOf() float64 { return m.Price }
func (t Trade) PriceOf() float64     { return t.Price }

// recorder is a thread-safe subscriber that remembers every event.
type recorder struct {
	mu     sync.Mutex
	events []any
}

func (r *recorder) Handle(event any) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) snapshot() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.events...)
}
