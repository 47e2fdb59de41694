package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "codepulse.requests.total"
	metricRequestDuration  = "codepulse.request.duration.seconds"
	metricErrorsTotal      = "codepulse.errors.total"
	metricInflightRequests = "codepulse.inflight.requests"

	attrOp     = "op"
	attrStatus = "status"

	statusOK    = "ok"
	statusError = "error"
)

// durationBucketBoundaries covers 1ms to 60s: cache hits answer in
// microseconds while cold worker loads plus analysis can take seconds.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// REDMetrics holds the OTel instruments for Rate, Error, Duration metrics.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	reqTotal, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Total number of requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	reqDuration, err := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestDuration, err)
	}

	errTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightRequests,
		metric.WithDescription("Number of in-flight requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightRequests, err)
	}

	return &REDMetrics{
		requestsTotal:    reqTotal,
		requestDuration:  reqDuration,
		errorsTotal:      errTotal,
		inflightRequests: inflight,
	}, nil
}

// RecordRequest records a completed request with its operation and duration.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op string, failed bool, duration time.Duration) {
	status := statusOK
	if failed {
		status = statusError
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if failed {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// RequestStarted increments the in-flight gauge for op; the returned
// function decrements it.
func (rm *REDMetrics) RequestStarted(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

const (
	metricActiveConnections = "codepulse.connections.active"
	metricCacheEntries      = "codepulse.cache.entries"
	metricCacheHits         = "codepulse.cache.hits.total"
	metricCacheMisses       = "codepulse.cache.misses.total"
)

// GaugeSources supplies current values for the service-level observable
// gauges. Implementations must be safe for concurrent use.
type GaugeSources struct {
	ActiveConnections func() int64
	CacheEntries      func() int64
	CacheHits         func() int64
	CacheMisses       func() int64
}

// RegisterServiceGauges registers observable gauges for connection and
// cache state, polled at collection time.
func RegisterServiceGauges(mt metric.Meter, src GaugeSources) error {
	conns, err := mt.Int64ObservableGauge(metricActiveConnections,
		metric.WithDescription("Active realtime connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricActiveConnections, err)
	}

	entries, err := mt.Int64ObservableGauge(metricCacheEntries,
		metric.WithDescription("Result cache entry count"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricCacheEntries, err)
	}

	hits, err := mt.Int64ObservableCounter(metricCacheHits,
		metric.WithDescription("Result cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricCacheHits, err)
	}

	misses, err := mt.Int64ObservableCounter(metricCacheMisses,
		metric.WithDescription("Result cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", metricCacheMisses, err)
	}

	_, err = mt.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		obs.ObserveInt64(conns, src.ActiveConnections())
		obs.ObserveInt64(entries, src.CacheEntries())
		obs.ObserveInt64(hits, src.CacheHits())
		obs.ObserveInt64(misses, src.CacheMisses())

		return nil
	}, conns, entries, hits, misses)
	if err != nil {
		return fmt.Errorf("register gauge callback: %w", err)
	}

	return nil
}
