// Package trace wraps each pipeline phase in an OpenTelemetry span when
// tracing is enabled. The verbose/debug/trace_lines config flags have no
// semantic effect on the run's output — this package only ever records
// attributes, never feeds anything back into the result map or the
// rewritten source.
package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName matches the module, following the single-tracer-name
// convention of one tracer per binary rather than per package.
const tracerName = "unfoldgo"

// Phase starts a span for one pipeline stage and returns a function that
// ends it. When no SDK/exporter is configured, otel.GetTracerProvider()
// is the no-op default, so this costs nothing when tracing is unused.
func Phase(ctx context.Context, name string) (context.Context, func(attrs ...attribute.KeyValue)) {
	tracer := otel.GetTracerProvider().Tracer(tracerName)
	ctx, span := tracer.Start(ctx, name)
	return ctx, func(attrs ...attribute.KeyValue) {
		span.SetAttributes(attrs...)
		span.End()
	}
}

// CallSite starts a per-call-site span, used by extraction and evaluation
// only when trace_lines is set.
func CallSite(ctx context.Context, key string) (context.Context, func(attrs ...attribute.KeyValue)) {
	tracer := otel.GetTracerProvider().Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "call_site", trace.WithAttributes(attribute.String("call.key", key)))
	return ctx, func(attrs ...attribute.KeyValue) {
		span.SetAttributes(attrs...)
		span.End()
	}
}

// Int is a small convenience re-export so callers in internal/pipeline
// don't need a second otel import just to build an attribute.KeyValue.
func Int(key string, v int) attribute.KeyValue { return attribute.Int(key, v) }

// Bool is the boolean counterpart of Int.
func Bool(key string, v bool) attribute.KeyValue { return attribute.Bool(key, v) }

// String is the string counterpart of Int.
func String(key string, v string) attribute.KeyValue { return attribute.String(key, v) }
