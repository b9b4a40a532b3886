package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "cookiebarrel/orders"

// Tracer returns the order engine tracer from the global provider. Without an
// SDK installed the spans are no-ops.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
