// Package telemetry exposes OpenTelemetry metrics for the bundle cache.
package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	meterName = "github.com/localehub/bundle-cache"
)

// LookupResult labels the outcome of one cache lookup.
type LookupResult string

const (
	LookupMemoryHit  LookupResult = "memory_hit"
	LookupDurableHit LookupResult = "durable_hit"
	LookupMiss       LookupResult = "miss"
)

// MetricsConfig configures the metrics system.
type MetricsConfig struct {
	// ServiceName is the name of the service for resource attributes.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317").
	// If empty, OTLP export is disabled.
	OTLPEndpoint string

	// EnablePrometheus enables the Prometheus /metrics endpoint.
	EnablePrometheus bool

	// FlushInterval is how often to export metrics (default: 10s).
	FlushInterval time.Duration
}

// Metrics holds the OpenTelemetry metric instruments.
type Metrics struct {
	lookupsTotal         metric.Int64Counter
	evictionsTotal       metric.Int64Counter
	removalsTotal        metric.Int64Counter
	entryWriteSize       metric.Float64Histogram
	compressionRatio     metric.Float64Gauge
	preloadFetchTotal    metric.Int64Counter
	preloadFetchDuration metric.Float64Histogram

	meterProvider *sdkmetric.MeterProvider
	promHandler   http.Handler
}

var (
	globalMetrics *Metrics
	initOnce      sync.Once
	initErr       error
)

// InitMetrics initializes the OpenTelemetry metrics system.
// Returns a shutdown function that should be called on application exit.
// Uses sync.Once to ensure single initialisation. All Record helpers are
// no-ops until this has been called, so library users who never wire
// telemetry pay nothing.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (shutdown func(context.Context) error, err error) {
	initOnce.Do(func() {
		initErr = doInitMetrics(ctx, cfg)
	})

	if initErr != nil {
		return nil, initErr
	}

	return shutdownMetrics, nil
}

func doInitMetrics(ctx context.Context, cfg MetricsConfig) error {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "bundle-cache"
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	// Build resource with service info
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return err
	}

	var readers []sdkmetric.Reader
	var promHandler http.Handler

	// Setup OTLP exporter if endpoint configured
	if cfg.OTLPEndpoint != "" {
		otlpExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(), // Use WithTLSCredentials for production
		)
		if err != nil {
			return err
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(otlpExporter,
			sdkmetric.WithInterval(cfg.FlushInterval),
		))
	}

	// Setup Prometheus exporter if enabled
	if cfg.EnablePrometheus {
		promExp, err := promexporter.New()
		if err != nil {
			return err
		}
		readers = append(readers, promExp)
		promHandler = promhttp.Handler()
	}

	// If no exporters configured, use a no-op periodic reader to still collect metrics
	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewPeriodicReader(noopExporter{},
			sdkmetric.WithInterval(cfg.FlushInterval),
		))
	}

	// Build meter provider options
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	// Create meter and instruments
	meter := mp.Meter(meterName)

	lookupsTotal, err := meter.Int64Counter(
		"bundle_cache_lookups_total",
		metric.WithDescription("Total number of cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return err
	}

	evictionsTotal, err := meter.Int64Counter(
		"bundle_cache_evictions_total",
		metric.WithDescription("Total entries evicted to respect the byte budget"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	removalsTotal, err := meter.Int64Counter(
		"bundle_cache_removals_total",
		metric.WithDescription("Total entries removed by expiry sweeps and corruption cleanup"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	entryWriteSize, err := meter.Float64Histogram(
		"bundle_cache_entry_write_size_bytes",
		metric.WithDescription("Stored size of written cache entries"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(128, 512, 1024, 2048, 4096, 8192, 16384, 32768, 65536, 131072, 262144, 524288, 1048576),
	)
	if err != nil {
		return err
	}

	compressionRatio, err := meter.Float64Gauge(
		"bundle_cache_compression_ratio",
		metric.WithDescription("Compressed/original size ratio of the most recent compressed write"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	preloadFetchTotal, err := meter.Int64Counter(
		"bundle_cache_preload_fetch_total",
		metric.WithDescription("Total preload fetch attempts by outcome"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	preloadFetchDuration, err := meter.Float64Histogram(
		"bundle_cache_preload_fetch_duration_seconds",
		metric.WithDescription("Duration of preload fetch attempts"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60),
	)
	if err != nil {
		return err
	}

	globalMetrics = &Metrics{
		lookupsTotal:         lookupsTotal,
		evictionsTotal:       evictionsTotal,
		removalsTotal:        removalsTotal,
		entryWriteSize:       entryWriteSize,
		compressionRatio:     compressionRatio,
		preloadFetchTotal:    preloadFetchTotal,
		preloadFetchDuration: preloadFetchDuration,
		meterProvider:        mp,
		promHandler:          promHandler,
	}

	return nil
}

// shutdownMetrics shuts down the metrics provider and clears the global state.
func shutdownMetrics(ctx context.Context) error {
	if globalMetrics == nil {
		return nil
	}
	err := globalMetrics.meterProvider.Shutdown(ctx)
	globalMetrics = nil
	return err
}

// RecordLookup records one cache lookup.
func RecordLookup(ctx context.Context, result LookupResult) {
	if globalMetrics == nil {
		return
	}

	globalMetrics.lookupsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", string(result)),
	))
}

// RecordEvictions records entries evicted by one budget pass.
func RecordEvictions(ctx context.Context, n int) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.evictionsTotal.Add(ctx, int64(n))
}

// RecordRemovals records entries removed by expiry sweeps or corruption
// cleanup.
func RecordRemovals(ctx context.Context, n int) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.removalsTotal.Add(ctx, int64(n))
}

// RecordWrite records the stored size of one written entry.
func RecordWrite(ctx context.Context, size int64, compressed bool) {
	if globalMetrics == nil {
		return
	}

	globalMetrics.entryWriteSize.Record(ctx, float64(size), metric.WithAttributes(
		attribute.Bool("compressed", compressed),
	))
}

// RecordCompressionRatio records the latest observed compression ratio.
func RecordCompressionRatio(ctx context.Context, ratio float64) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.compressionRatio.Record(ctx, ratio)
}

// RecordPreloadFetch records one preload fetch attempt.
func RecordPreloadFetch(ctx context.Context, ok bool, duration time.Duration) {
	if globalMetrics == nil {
		return
	}

	outcome := "error"
	if ok {
		outcome = "success"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	globalMetrics.preloadFetchTotal.Add(ctx, 1, attrs)
	globalMetrics.preloadFetchDuration.Record(ctx, duration.Seconds(), attrs)
}

// PrometheusHandler returns the Prometheus metrics HTTP handler.
// Returns a handler that returns 404 if Prometheus export is not enabled,
// allowing safe registration regardless of initialization order.
func PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if globalMetrics == nil || globalMetrics.promHandler == nil {
			http.NotFound(w, r)
			return
		}
		globalMetrics.promHandler.ServeHTTP(w, r)
	})
}

// noopExporter is a no-op metrics exporter for when no exporters are configured.
type noopExporter struct{}

func (noopExporter) Temporality(_ sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func (noopExporter) Aggregation(_ sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return nil
}

func (noopExporter) Export(_ context.Context, _ *metricdata.ResourceMetrics) error {
	return nil
}

func (noopExporter) ForceFlush(_ context.Context) error {
	return nil
}

func (noopExporter) Shutdown(_ context.Context) error {
	return nil
}
