// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package eventbus

// asyncSettings collects construction-time knobs for AsyncBus.
type asyncSettings struct {
	workers  int
	coalesce bool
}

// AsyncOption configures an AsyncBus.
type AsyncOption func(*asyncSettings)

// WithWorkers bounds subscriber fan-out to a fixed pool of n workers.
// With n <= 0 (the default) every delivery runs on its own goroutine.
func WithWorkers(n int) AsyncOption {
	return func(s *asyncSettings) {
		s.workers = n
	}
}

// WithCoalescing collapses queued publishes per event type: only the
// most recent value of each type is delivered when the drainer catches
// up.
func WithCoalescing() AsyncOption {
	return func(s *asyncSettings) {
		s.coalesce = true
	}
}
