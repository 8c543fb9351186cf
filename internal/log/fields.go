// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	FieldComponent = "component"

	// Bus fields
	FieldBusMode    = "bus_mode"
	FieldEventType  = "event_type"
	FieldQueueDepth = "queue_depth"
	FieldWorkers    = "workers"

	// Throttle fields
	FieldMaxOps  = "max_ops"
	FieldWindow  = "window"
	FieldPending = "pending"
	FieldDelay   = "delay"
)
