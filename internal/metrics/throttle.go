// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ThrottleAdmitTotal counts granted admissions.
	ThrottleAdmitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickbus_throttle_admit_total",
		Help: "Total number of operations admitted by the rolling-window throttler.",
	})

	// ThrottleDenyTotal counts denied admissions.
	ThrottleDenyTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickbus_throttle_deny_total",
		Help: "Total number of operations denied by the rolling-window throttler.",
	})

	// ThrottleCallbackErrorsTotal counts panics swallowed while firing
	// wakeup callbacks.
	ThrottleCallbackErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickbus_throttle_callback_errors_total",
		Help: "Total number of wakeup callback failures.",
	})

	// ThrottledPendingEvents tracks events buffered behind the throttled
	// bus adapter.
	ThrottledPendingEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tickbus_throttled_pending_events",
		Help: "Current number of events deferred by the throttled bus adapter.",
	})
)
