package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordFetcherStarted()
	p.RecordFetcherStarted()
	p.RecordFetcherClosed("idle")
	p.RecordActiveFetchers(1)
	p.RecordFetch("orders", 5, 0.01, false)
	p.RecordFetch("orders", 0, 0.5, false)
	p.RecordAcknowledged("orders", 2, true)
	p.RecordAcknowledged("orders", 1, false)
	p.RecordPendingAcks(7)
	p.RecordSplitCount(3)
	p.RecordSplitFinished("orders")
	p.RecordConnectionCreated(false)
	p.RecordConnectionCreated(true)
	p.RecordConnectionReleased()

	require.InDelta(t, 2, testutil.ToFloat64(p.fetchersStarted), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.fetchersClosed.WithLabelValues("idle")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.fetchersActive), 0)
	require.InDelta(t, 5, testutil.ToFloat64(p.fetchMessages.WithLabelValues("orders")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(p.acksPublished.WithLabelValues("orders", "success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.acksPublished.WithLabelValues("orders", "failure")), 0)
	require.InDelta(t, 7, testutil.ToFloat64(p.pendingAcks), 0)
	require.InDelta(t, 3, testutil.ToFloat64(p.splitsTracked), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.splitsFinished), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.connsCreated.WithLabelValues("true")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.connsReleased), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNewPrometheus_Defaults(t *testing.T) {
	p := NewPrometheus(nil, "")
	require.Equal(t, "splitsource", p.namespace)
	require.Equal(t, prometheus.DefaultRegisterer, p.reg)
}
