// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics provides Prometheus metrics for the tickbus core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BusPublishedTotal counts events accepted by a bus, by delivery mode.
	BusPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickbus_bus_published_total",
		Help: "Total number of events accepted for delivery, by bus mode.",
	}, []string{"mode"})

	// BusCoalescedTotal counts publishes absorbed into an already queued
	// slot of the same event type.
	BusCoalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickbus_bus_coalesced_total",
		Help: "Total number of publishes coalesced into an existing queue slot.",
	})

	// BusHandlerErrorsTotal counts subscriber failures swallowed at the bus
	// boundary, by bus mode.
	BusHandlerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickbus_bus_handler_errors_total",
		Help: "Total number of subscriber handler errors and panics, by bus mode.",
	}, []string{"mode"})

	// BusQueueDepth tracks the current depth of the async dispatch queue.
	BusQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tickbus_bus_queue_depth",
		Help: "Current number of entries waiting in the async dispatch queue.",
	})
)

// IncBusPublished records an accepted publish for the given bus mode.
func IncBusPublished(mode string) {
	if mode == "" {
		mode = "unknown"
	}
	BusPublishedTotal.WithLabelValues(mode).Inc()
}

// IncBusHandlerError records a swallowed handler failure for the given bus mode.
func IncBusHandlerError(mode string) {
	if mode == "" {
		mode = "unknown"
	}
	BusHandlerErrorsTotal.WithLabelValues(mode).Inc()
}
