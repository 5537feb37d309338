// Package otel wires OpenTelemetry tracing for escrow binaries.
package otel

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/platform/config"
)

// Environment keys controlling trace export.
const (
	EnvEndpoint    = "ESCROW_OTEL_ENDPOINT"
	EnvEnabled     = "ESCROW_OTEL_ENABLED"
	EnvSampleRatio = "ESCROW_OTEL_SAMPLE_RATIO"
	EnvDeployment  = "ESCROW_ENV"
)

// Settings is the trace export configuration read from the environment.
type Settings struct {
	Endpoint    string `env:"ESCROW_OTEL_ENDPOINT"`
	Enabled     string `env:"ESCROW_OTEL_ENABLED"`
	SampleRatio string `env:"ESCROW_OTEL_SAMPLE_RATIO"`
	Deployment  string `env:"ESCROW_ENV"`
}

// Active reports whether spans should be exported.
func (s Settings) Active() bool {
	if strings.EqualFold(strings.TrimSpace(s.Enabled), "false") {
		return false
	}
	return strings.TrimSpace(s.Endpoint) != ""
}

// Sampler returns the parent-based sampler for the configured ratio. An
// empty ratio samples every trace.
func (s Settings) Sampler() (sdktrace.Sampler, error) {
	raw := strings.TrimSpace(s.SampleRatio)
	if raw == "" {
		return sdktrace.ParentBased(sdktrace.AlwaysSample()), nil
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("%s must be a number in [0,1], got %q", EnvSampleRatio, raw)
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
}

// Setup initialises OpenTelemetry tracing for the given service.
//
// Tracing is opt-in: without ESCROW_OTEL_ENDPOINT, or with
// ESCROW_OTEL_ENABLED=false, Setup registers nothing and returns a no-op
// shutdown. Otherwise the returned shutdown flushes pending spans.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	var settings Settings
	if err := config.ParseEnv(&settings); err != nil {
		return noop, err
	}
	if !settings.Active() {
		return noop, nil
	}
	sampler, err := settings.Sampler()
	if err != nil {
		return noop, err
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(strings.TrimSpace(settings.Endpoint)),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(settings.attributes(serviceName)...))
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func (s Settings) attributes(serviceName string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceNamespace("crowdfunding"),
		semconv.ServiceVersion(buildVersion()),
	}
	if env := strings.TrimSpace(s.Deployment); env != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(env))
	}
	return attrs
}

// buildVersion is the main module version, or "devel" for local builds.
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "devel"
	}
	return info.Main.Version
}
