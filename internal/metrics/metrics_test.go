// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c interface {
	Write(*dto.Metric) error
}) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestIncBusPublishedDefaultsUnknownMode(t *testing.T) {
	before := counterValue(t, BusPublishedTotal.WithLabelValues("unknown"))
	IncBusPublished("")
	after := counterValue(t, BusPublishedTotal.WithLabelValues("unknown"))
	require.Equal(t, before+1, after)
}

func TestIncBusHandlerError(t *testing.T) {
	before := counterValue(t, BusHandlerErrorsTotal.WithLabelValues("sync"))
	IncBusHandlerError("sync")
	after := counterValue(t, BusHandlerErrorsTotal.WithLabelValues("sync"))
	require.Equal(t, before+1, after)
}
