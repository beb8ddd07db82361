package monitoring

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"tokenizer-service/logging"
)

// Metric exporters accepted by InitMeter.
const (
	ExporterOTLP       = "otlp"
	ExporterPrometheus = "prometheus"
)

var (
	// OpenTelemetry metrics
	TokenizeCounter      metric.Int64Counter
	TierFailureCounter   metric.Int64Counter
	ExternalCallDuration metric.Float64Histogram
	HTTPServerDuration   metric.Float64Histogram

	promRegistry *prometheus.Registry
)

func init() {
	// Instruments stay usable before InitMeter runs; the global provider is a no-op until then.
	if err := initInstruments(otel.GetMeterProvider().Meter("tokenizer-service")); err != nil {
		panic(err)
	}
}

// InitTracer initializes OpenTelemetry tracing
func InitTracer(serviceName, endpoint string) (*sdktrace.TracerProvider, trace.Tracer, error) {
	ctx := context.Background()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, err
	}

	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	tracer := tp.Tracer(serviceName)

	logging.Info("Tracing initialized", zap.String("service_name", serviceName))

	return tp, tracer, nil
}

// InitMeter initializes OpenTelemetry metrics. The exporter is either
// ExporterOTLP (push to endpoint) or ExporterPrometheus (scraped through
// MetricsHandler).
func InitMeter(serviceName, endpoint, exporter string) (*sdkmetric.MeterProvider, metric.Meter, error) {
	ctx := context.Background()

	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, nil, err
	}

	var reader sdkmetric.Reader
	switch exporter {
	case ExporterPrometheus:
		registry := prometheus.NewRegistry()
		promExporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, nil, err
		}
		promRegistry = registry
		reader = promExporter
	case ExporterOTLP, "":
		metricExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, nil, err
		}
		promRegistry = nil
		reader = sdkmetric.NewPeriodicReader(metricExporter)
	default:
		return nil, nil, fmt.Errorf("unknown metrics exporter %q", exporter)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)
	meter := mp.Meter(serviceName)

	if err := initInstruments(meter); err != nil {
		return nil, nil, err
	}

	logging.Info("Metrics initialized",
		zap.String("exporter", exporter),
		zap.String("endpoint", endpoint),
	)

	return mp, meter, nil
}

// MetricsHandler serves the Prometheus registry. It returns nil unless
// InitMeter was called with ExporterPrometheus.
func MetricsHandler() http.Handler {
	if promRegistry == nil {
		return nil
	}
	return promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
}

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
}

func initInstruments(meter metric.Meter) error {
	var err error

	TokenizeCounter, err = meter.Int64Counter(
		"card_tokenize_requests_total",
		metric.WithDescription("Total number of card tokenization requests by outcome and tier"),
	)
	if err != nil {
		return err
	}

	TierFailureCounter, err = meter.Int64Counter(
		"card_tokenize_tier_failures_total",
		metric.WithDescription("Tokenization attempts that failed and fell through to the next tier"),
	)
	if err != nil {
		return err
	}

	ExternalCallDuration, err = meter.Float64Histogram(
		"external_tokenizer_duration_seconds",
		metric.WithDescription("Duration of calls to the card token API"),
	)
	if err != nil {
		return err
	}

	HTTPServerDuration, err = meter.Float64Histogram(
		"http_server_duration_milliseconds",
		metric.WithDescription("HTTP server request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}
