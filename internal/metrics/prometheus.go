package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/splitsource/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered with the registerer on first use.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	fetchersStarted prometheus.Counter
	fetchersClosed  *prometheus.CounterVec
	fetchersActive  prometheus.Gauge
	fetchMessages   *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	acksPublished   *prometheus.CounterVec
	pendingAcks     prometheus.Gauge
	splitsTracked   prometheus.Gauge
	splitsFinished  prometheus.Counter
	connsCreated    *prometheus.CounterVec
	connsReleased   prometheus.Counter
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "splitsource" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "splitsource"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.fetchersStarted = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "fetcher",
			Name:      "started_total",
			Help:      "Total fetcher goroutines started.",
		})
		p.fetchersClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "fetcher",
			Name:      "closed_total",
			Help:      "Total fetchers stopped by reason (closed, idle, error).",
		}, []string{"reason"})
		p.fetchersActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "fetcher",
			Name:      "active",
			Help:      "Current number of live fetchers.",
		})

		p.fetchMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "split_reader",
			Name:      "fetched_messages_total",
			Help:      "Total messages fetched by split.",
		}, []string{"split"})
		p.fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "split_reader",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of fetch cycles in seconds by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}, []string{"error"})
		p.acksPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "split_reader",
			Name:      "acks_total",
			Help:      "Total acknowledgments by split and result (success, failure).",
		}, []string{"split", "result"})
		p.pendingAcks = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "pending_acks",
			Help:      "Messages awaiting checkpoint confirmation.",
		})

		p.splitsTracked = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "enumerator",
			Name:      "splits",
			Help:      "Splits tracked by the enumerator.",
		})
		p.splitsFinished = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "enumerator",
			Name:      "splits_finished_total",
			Help:      "Total bounded splits that reached their end.",
		})

		p.connsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "connection_pool",
			Name:      "created_total",
			Help:      "Total pooled connections created (reconnect=true when replacing a dead one).",
		}, []string{"reconnect"})
		p.connsReleased = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "connection_pool",
			Name:      "released_total",
			Help:      "Total pooled connections released.",
		})

		p.reg.MustRegister(
			p.fetchersStarted,
			p.fetchersClosed,
			p.fetchersActive,
			p.fetchMessages,
			p.fetchDuration,
			p.acksPublished,
			p.pendingAcks,
			p.splitsTracked,
			p.splitsFinished,
			p.connsCreated,
			p.connsReleased,
		)
	})
}

// RecordFetcherStarted increments the fetcher start counter.
func (p *PrometheusCollector) RecordFetcherStarted() {
	p.ensureRegistered()
	p.fetchersStarted.Inc()
}

// RecordFetcherClosed increments the fetcher close counter for reason.
func (p *PrometheusCollector) RecordFetcherClosed(reason string) {
	p.ensureRegistered()
	p.fetchersClosed.WithLabelValues(reason).Inc()
}

// RecordActiveFetchers sets the active fetcher gauge.
func (p *PrometheusCollector) RecordActiveFetchers(count int) {
	p.ensureRegistered()
	p.fetchersActive.Set(float64(count))
}

// RecordFetch records fetched messages and fetch latency.
func (p *PrometheusCollector) RecordFetch(splitID string, count int, duration float64, err bool) {
	p.ensureRegistered()
	if count > 0 {
		p.fetchMessages.WithLabelValues(splitID).Add(float64(count))
	}
	p.fetchDuration.WithLabelValues(strconv.FormatBool(err)).Observe(duration)
}

// RecordAcknowledged records acknowledgment results.
func (p *PrometheusCollector) RecordAcknowledged(splitID string, count int, success bool) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.acksPublished.WithLabelValues(splitID, result).Add(float64(count))
}

// RecordPendingAcks sets the pending acknowledgment gauge.
func (p *PrometheusCollector) RecordPendingAcks(count int) {
	p.ensureRegistered()
	p.pendingAcks.Set(float64(count))
}

// RecordSplitCount sets the tracked split gauge.
func (p *PrometheusCollector) RecordSplitCount(count int) {
	p.ensureRegistered()
	p.splitsTracked.Set(float64(count))
}

// RecordSplitFinished increments the finished split counter.
func (p *PrometheusCollector) RecordSplitFinished(_ string) {
	p.ensureRegistered()
	p.splitsFinished.Inc()
}

// RecordConnectionCreated increments the connection creation counter.
func (p *PrometheusCollector) RecordConnectionCreated(reconnect bool) {
	p.ensureRegistered()
	p.connsCreated.WithLabelValues(strconv.FormatBool(reconnect)).Inc()
}

// RecordConnectionReleased increments the connection release counter.
func (p *PrometheusCollector) RecordConnectionReleased() {
	p.ensureRegistered()
	p.connsReleased.Inc()
}
