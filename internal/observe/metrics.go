// Package observe provides observability primitives for the speechhook
// server: OpenTelemetry metrics and tracing for the frame-processing
// pipeline.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all speechhook metrics.
const meterName = "github.com/MrWong99/speechhook"

// frameLatencyBuckets covers the expected per-frame processing cost: the
// budget is a fraction of the 10–20 ms frame interval, so the interesting
// range is tens of microseconds to a few milliseconds.
var frameLatencyBuckets = []float64{
	0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02,
}

// Metrics holds all OpenTelemetry metric instruments for the detector
// pipeline. All fields are safe for concurrent use — the underlying OTel
// types handle their own synchronisation.
type Metrics struct {
	// FrameDuration tracks per-frame detection processing latency in seconds.
	FrameDuration metric.Float64Histogram

	// FramesProcessed counts successfully processed frames. Use with
	// attribute.String("encoding", ...).
	FramesProcessed metric.Int64Counter

	// OnsetsDetected counts confirmed speech onsets.
	OnsetsDetected metric.Int64Counter

	// DecodeErrors counts frames rejected for malformed input (misaligned
	// buffers, wrong frame size).
	DecodeErrors metric.Int64Counter

	// ActiveStreams tracks the number of media streams currently connected.
	ActiveStreams metric.Int64UpDownCounter

	// NoiseFloor records the adapted noise floor after each processed frame.
	NoiseFloor metric.Float64Gauge
}

// NewMetrics creates all metric instruments on a meter from the given
// provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.FrameDuration, err = m.Float64Histogram("speechhook.frame.duration",
		metric.WithDescription("Per-frame detection processing latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameLatencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FramesProcessed, err = m.Int64Counter("speechhook.frames.processed",
		metric.WithDescription("Total audio frames processed by encoding."),
	); err != nil {
		return nil, err
	}
	if met.OnsetsDetected, err = m.Int64Counter("speechhook.onsets.detected",
		metric.WithDescription("Total confirmed speech onsets."),
	); err != nil {
		return nil, err
	}
	if met.DecodeErrors, err = m.Int64Counter("speechhook.decode.errors",
		metric.WithDescription("Total frames rejected for malformed input."),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("speechhook.streams.active",
		metric.WithDescription("Number of currently connected media streams."),
	); err != nil {
		return nil, err
	}
	if met.NoiseFloor, err = m.Float64Gauge("speechhook.noise_floor",
		metric.WithDescription("Adapted noise-floor estimate after the most recent frame."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: creating default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
