package web

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voltbench/leakage-simulator/internal/logging"
	"github.com/voltbench/leakage-simulator/model"
)

const tracerName = "github.com/voltbench/leakage-simulator/internal/web"

// startCommandSpan opens a span around one command application,
// whether the command arrived over HTTP or the websocket. When tracing
// was never initialised the otel tracer is a noop and the control path
// pays nothing.
func startCommandSpan(ctx context.Context, cmd model.Command) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	attrs := []attribute.KeyValue{
		attribute.String("command", string(cmd)),
	}
	if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
		attrs = append(attrs, attribute.String("request_id", reqID))
	}
	return tracer.Start(ctx, "Control/"+string(cmd), trace.WithAttributes(attrs...))
}
