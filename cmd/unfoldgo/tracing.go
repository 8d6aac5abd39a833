package main

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// setupTracing registers a real SDK tracer provider when either --verbose
// or --debug is set, so internal/trace's phase and call-site spans land
// somewhere instead of the no-op default. Spans print to stderr as
// newline-delimited JSON; debug additionally samples every span, where
// verbose alone samples one in eight to keep routine runs quiet.
func setupTracing(verbose, debug bool) (shutdown func(context.Context) error, err error) {
	if !verbose && !debug {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.TraceIDRatioBased(0.125)
	if debug {
		sampler = sdktrace.AlwaysSample()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
