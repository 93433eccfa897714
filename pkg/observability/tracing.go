package observability

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-xray-sdk-go/xray"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer provides distributed tracing capabilities
type Tracer interface {
	// TraceFunction runs fn inside a span named name
	TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error
	// AddAnnotation adds an indexed key/value to the current span
	AddAnnotation(ctx context.Context, key, value string)
	// Shutdown flushes buffered spans
	Shutdown(ctx context.Context) error
}

// Tracing backends
const (
	BackendNone = "none"
	BackendXRay = "xray"
	BackendOTLP = "otlp"
)

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Backend     string // none, otlp or xray
	ServiceName string
	Environment string
	Endpoint    string
	SampleRate  float64
}

// NewTracer builds the tracer selected by cfg.Backend
func NewTracer(ctx context.Context, cfg TracingConfig) (Tracer, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return NoopTracer{}, nil
	case BackendXRay:
		return NewXRayTracer(cfg.ServiceName), nil
	case BackendOTLP:
		return NewOTelTracer(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown tracing backend %q", cfg.Backend)
	}
}

// NoopTracer runs functions without recording anything
type NoopTracer struct{}

func (NoopTracer) TraceFunction(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}
func (NoopTracer) AddAnnotation(context.Context, string, string) {}
func (NoopTracer) Shutdown(context.Context) error                { return nil }

// XRayTracer records AWS X-Ray subsegments. Outside Lambda or an
// xray.Handler there is no parent segment, in which case the SDK logs and
// continues without recording.
type XRayTracer struct {
	serviceName string
}

// NewXRayTracer creates a new X-Ray tracer instance
func NewXRayTracer(serviceName string) *XRayTracer {
	return &XRayTracer{
		serviceName: serviceName,
	}
}

// StartSegment starts a new trace segment
func (t *XRayTracer) StartSegment(ctx context.Context, name string) (context.Context, *xray.Segment) {
	return xray.BeginSegment(ctx, fmt.Sprintf("%s.%s", t.serviceName, name))
}

// TraceFunction wraps a function with a subsegment
func (t *XRayTracer) TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, seg := xray.BeginSubsegment(ctx, name)
	if seg == nil {
		return fn(ctx)
	}

	err := fn(ctx)
	seg.Close(err)
	return err
}

// AddAnnotation adds an indexed annotation to the current segment
func (t *XRayTracer) AddAnnotation(ctx context.Context, key, value string) {
	if seg := xray.GetSegment(ctx); seg != nil {
		_ = seg.AddAnnotation(key, value)
	}
}

func (t *XRayTracer) Shutdown(context.Context) error { return nil }

// OTelTracer exports spans over OTLP gRPC
type OTelTracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewOTelTracer initializes an OTLP exporter and a batching tracer provider
func NewOTelTracer(ctx context.Context, cfg TracingConfig) (*OTelTracer, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if strings.HasPrefix(endpoint, "localhost:") || strings.HasPrefix(endpoint, "127.0.0.1:") {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &OTelTracer{
		provider: tp,
		tracer:   tp.Tracer(cfg.ServiceName),
	}, nil
}

func sampler(cfg TracingConfig) sdktrace.Sampler {
	if cfg.Environment == "production" && cfg.SampleRate > 0 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}
	return sdktrace.AlwaysSample()
}

// TraceFunction wraps a function with a span
func (t *OTelTracer) TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := t.tracer.Start(ctx, name)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// AddAnnotation sets an attribute on the current span
func (t *OTelTracer) AddAnnotation(ctx context.Context, key, value string) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(key, value))
}

// Shutdown flushes and stops the provider
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
