// Package metrics provides Prometheus metrics for FindMyLease services
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge
	WatchStreamsActive   prometheus.Gauge

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	StoreWatchersActive    prometheus.Gauge

	// Live cache metrics
	SubscriptionsActive     prometheus.Gauge
	SnapshotsTotal          prometheus.Counter
	SnapshotRecords         prometheus.Histogram
	SubscriptionErrorsTotal *prometheus.CounterVec

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates all metrics and registers them on reg. A nil reg means
// the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	// gRPC request metrics
	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findmylease_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "findmylease_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "findmylease_grpc_requests_in_flight",
			Help: "Number of unary gRPC requests currently being processed",
		},
	)

	m.WatchStreamsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "findmylease_watch_streams_active",
			Help: "Number of open Watch streams",
		},
	)

	// Store metrics
	m.StoreOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findmylease_store_operations_total",
			Help: "Total number of collection store operations",
		},
		[]string{"operation", "status"},
	)

	m.StoreOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "findmylease_store_operation_duration_seconds",
			Help:    "Duration of collection store operations in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	m.StoreWatchersActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "findmylease_store_watchers_active",
			Help: "Number of collection watchers attached to the store",
		},
	)

	// Live cache metrics
	m.SubscriptionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "findmylease_live_subscriptions_active",
			Help: "Number of live subscriptions held by the cache",
		},
	)

	m.SnapshotsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "findmylease_live_snapshots_total",
			Help: "Total number of snapshots delivered to subscribers",
		},
	)

	m.SnapshotRecords = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "findmylease_live_snapshot_records",
			Help:    "Number of records per delivered snapshot",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	m.SubscriptionErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findmylease_live_subscription_errors_total",
			Help: "Total number of failed live subscriptions",
		},
		[]string{"kind"},
	)

	// Server metrics
	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "findmylease_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	return m
}

// RunUptime updates the uptime gauge every interval until ctx is done
func (m *Metrics) RunUptime(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
		}
	}
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordStoreOperation records a store operation
func (m *Metrics) RecordStoreOperation(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SubscriptionOpened counts a new live subscription
func (m *Metrics) SubscriptionOpened() {
	m.SubscriptionsActive.Inc()
}

// SubscriptionClosed counts a torn down live subscription
func (m *Metrics) SubscriptionClosed() {
	m.SubscriptionsActive.Dec()
}

// RecordSnapshot records one delivered snapshot
func (m *Metrics) RecordSnapshot(recordCount int) {
	m.SnapshotsTotal.Inc()
	m.SnapshotRecords.Observe(float64(recordCount))
}

// RecordSubscriptionError records a failed live subscription
func (m *Metrics) RecordSubscriptionError(kind string) {
	m.SubscriptionErrorsTotal.WithLabelValues(kind).Inc()
}
