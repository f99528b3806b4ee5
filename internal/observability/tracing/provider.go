package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Setup installs an SDK tracer provider as the global provider and returns
// its shutdown function. Finished spans go to logger at DEBUG.
func Setup(logger *slog.Logger) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(&logExporter{logger: logger}),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown
}

// logExporter is a sdktrace.SpanExporter that writes spans to slog.
type logExporter struct {
	logger *slog.Logger
}

func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		attrs := []any{
			"span", s.Name(),
			"trace_id", s.SpanContext().TraceID().String(),
			"span_id", s.SpanContext().SpanID().String(),
			"duration_ms", s.EndTime().Sub(s.StartTime()).Milliseconds(),
			"status", s.Status().Code.String(),
		}
		if p := s.Parent(); p.IsValid() {
			attrs = append(attrs, "parent_span_id", p.SpanID().String())
		}
		if d := s.Status().Description; d != "" {
			attrs = append(attrs, "error", d)
		}
		e.logger.DebugContext(ctx, "span finished", attrs...)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error {
	return nil
}
