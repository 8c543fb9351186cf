// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package log provides structured zerolog logging for the tickbus core.
// Subsystems obtain pre-annotated child loggers (Bus, Throttle,
// Component) so every entry carries the canonical fields without
// repeating them at each call site.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	root = newRoot("tickbus", levelFromEnv(), os.Stdout)
)

func newRoot(service string, level zerolog.Level, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

func levelFromEnv() zerolog.Level {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			return parsed
		}
	}
	return zerolog.InfoLevel
}

// Init replaces the root logger. An empty service selects "tickbus",
// an empty or unparsable level the LOG_LEVEL-derived level, and a nil
// writer stdout. Loggers
// derived before Init keep the previous sink, so call it first thing.
func Init(service, level string, w io.Writer) {
	lvl := levelFromEnv()
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}
	if service == "" {
		service = "tickbus"
	}
	if w == nil {
		w = os.Stdout
	}
	mu.Lock()
	root = newRoot(service, lvl, w)
	mu.Unlock()
}

// Root returns the current root logger.
func Root() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Component returns a child logger annotated for one subsystem.
func Component(name string) zerolog.Logger {
	return Root().With().Str(FieldComponent, name).Logger()
}

// Bus returns a child logger for a bus with the given delivery mode.
// Entries carry component=eventbus and the mode, so dispatch paths only
// add the per-event fields.
func Bus(mode string) zerolog.Logger {
	return Root().With().
		Str(FieldComponent, "eventbus").
		Str(FieldBusMode, mode).
		Logger()
}

// Throttle returns a child logger carrying the throttler's window
// shape, so denial and callback logs are attributable without looking
// up the instance.
func Throttle(maxOps int, window time.Duration) zerolog.Logger {
	return Root().With().
		Str(FieldComponent, "throttle").
		Int(FieldMaxOps, maxOps).
		Dur(FieldWindow, window).
		Logger()
}
