// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package throttle

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/ManuGH/tickbus/internal/log"
	"github.com/ManuGH/tickbus/internal/metrics"
)

// Option configures a RollingWindow.
type Option func(*RollingWindow)

// WithClock substitutes the time source. Tests pass a mock clock to
// drive window rollover deterministically.
func WithClock(c clock.Clock) Option {
	return func(t *RollingWindow) {
		t.clk = c
	}
}

// RollingWindow admits at most maxOps operations per sliding window.
// Admission timestamps are kept in a FIFO; expired entries are evicted
// from the head on every public operation, so after any call returns
// every stored timestamp is younger than the window.
type RollingWindow struct {
	maxOps int
	window time.Duration
	clk    clock.Clock
	logger zerolog.Logger

	mu         sync.Mutex
	admissions []time.Time

	cbMu      sync.Mutex
	callbacks []Callback

	// notifyArmed guards against duplicate scheduled wakeups.
	notifyArmed atomic.Bool
	timerMu     sync.Mutex
	timer       *clock.Timer

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewRollingWindow validates the configuration and returns a throttler.
func NewRollingWindow(maxOps int, window time.Duration, opts ...Option) (*RollingWindow, error) {
	if maxOps <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxOps, maxOps)
	}
	if window <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWindow, window)
	}
	t := &RollingWindow{
		maxOps: maxOps,
		window: window,
		clk:    clock.New(),
		logger: log.Throttle(maxOps, window),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// ShouldProceed polls for admission. Proceed consumes one unit of
// capacity; DoNotProceed arms a wakeup for registered callbacks. After
// Close every poll is denied.
func (t *RollingWindow) ShouldProceed() Result {
	if t.closed.Load() {
		metrics.ThrottleDenyTotal.Inc()
		return DoNotProceed
	}

	now := t.clk.Now()
	t.mu.Lock()
	t.evictLocked(now)
	if len(t.admissions) < t.maxOps {
		t.admissions = append(t.admissions, now)
		t.mu.Unlock()
		metrics.ThrottleAdmitTotal.Inc()
		return Proceed
	}
	t.mu.Unlock()

	metrics.ThrottleDenyTotal.Inc()
	t.armNotification()
	return DoNotProceed
}

// NotifyWhenCanProceed registers cb. With capacity available the
// callback fires synchronously on the caller's goroutine; otherwise a
// wakeup is armed for the earliest instant capacity can return.
// Callbacks persist across firings until removed.
func (t *RollingWindow) NotifyWhenCanProceed(cb Callback) {
	if cb == nil || t.closed.Load() {
		return
	}
	t.cbMu.Lock()
	t.callbacks = append(t.callbacks, cb)
	t.cbMu.Unlock()

	if t.canProceedNow() {
		t.fire(cb)
	} else {
		t.armNotification()
	}
}

// RemoveCallback removes one occurrence of cb.
func (t *RollingWindow) RemoveCallback(cb Callback) {
	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	for i, registered := range t.callbacks {
		if callbackMatches(registered, cb) {
			t.callbacks = append(t.callbacks[:i], t.callbacks[i+1:]...)
			return
		}
	}
}

// callbackMatches compares callbacks without panicking on uncomparable
// dynamic types. Func adapters match by code pointer, so distinct
// closures created at the same source location are indistinguishable;
// callers that need precise removal should register a pointer type.
func callbackMatches(a, b Callback) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil || ta.Comparable() {
		return a == b
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// CurrentOperationCount reports the number of admissions inside the
// current window, after eviction.
func (t *RollingWindow) CurrentOperationCount() int {
	now := t.clk.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked(now)
	return len(t.admissions)
}

// TimeUntilNextOperation reports how long until capacity returns; zero
// when an operation could proceed immediately.
func (t *RollingWindow) TimeUntilNextOperation() time.Duration {
	now := t.clk.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked(now)
	if len(t.admissions) < t.maxOps {
		return 0
	}
	delay := t.admissions[0].Sub(now.Add(-t.window))
	if delay < 0 {
		delay = 0
	}
	return delay
}

// Close stops the notification timer and denies further admissions.
// Idempotent.
func (t *RollingWindow) Close() {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.timerMu.Lock()
		if t.timer != nil {
			t.timer.Stop()
		}
		t.timerMu.Unlock()
	})
}

func (t *RollingWindow) String() string {
	return fmt.Sprintf("RollingWindow{maxOps=%d, window=%s, currentOps=%d}",
		t.maxOps, t.window, t.CurrentOperationCount())
}

// evictLocked drops expired admissions from the head: an admission
// expires once a full window has elapsed since it. Callers hold mu.
func (t *RollingWindow) evictLocked(now time.Time) {
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(t.admissions) && !t.admissions[i].After(cutoff) {
		i++
	}
	if i > 0 {
		t.admissions = append(t.admissions[:0:0], t.admissions[i:]...)
	}
}

func (t *RollingWindow) canProceedNow() bool {
	now := t.clk.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked(now)
	return len(t.admissions) < t.maxOps
}

// armNotification schedules a one-shot wakeup at the earliest instant
// capacity can return. The notifyArmed flag keeps at most one schedule
// in flight; the timer body re-arms while still blocked.
func (t *RollingWindow) armNotification() {
	t.cbMu.Lock()
	empty := len(t.callbacks) == 0
	t.cbMu.Unlock()
	if empty || t.closed.Load() {
		return
	}
	if !t.notifyArmed.CompareAndSwap(false, true) {
		return
	}

	delay := t.TimeUntilNextOperation()
	if delay <= 0 {
		t.notifyArmed.Store(false)
		t.fireAll()
		return
	}

	t.timerMu.Lock()
	if t.closed.Load() {
		t.timerMu.Unlock()
		t.notifyArmed.Store(false)
		return
	}
	t.timer = t.clk.AfterFunc(delay, t.onTimer)
	t.timerMu.Unlock()
	t.logger.Debug().
		Dur(log.FieldDelay, delay).
		Msg("armed capacity wakeup")
}

func (t *RollingWindow) onTimer() {
	t.notifyArmed.Store(false)
	if t.closed.Load() {
		return
	}
	if t.canProceedNow() {
		t.fireAll()
	} else {
		t.armNotification()
	}
}

func (t *RollingWindow) fireAll() {
	t.cbMu.Lock()
	callbacks := append([]Callback(nil), t.callbacks...)
	t.cbMu.Unlock()
	for _, cb := range callbacks {
		t.fire(cb)
	}
}

// fire invokes one callback, isolating panics so the remaining
// callbacks still run.
func (t *RollingWindow) fire(cb Callback) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ThrottleCallbackErrorsTotal.Inc()
			t.logger.Error().
				Interface("panic", r).
				Msg("throttle callback panicked")
		}
	}()
	cb.OnCanProceed()
}

var _ Throttler = (*RollingWindow)(nil)
