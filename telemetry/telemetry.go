// Package telemetry wires the process's single tracer and meter, grounded
// in the teacher's vertex.go, which keeps package-level otel handles
// (tracer, meter, value recorders) rather than threading them through every
// call site. Here the same indirection reports Gate fan-out and RTR
// connection lifecycle instead of per-vertex packet handling.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/go-rtrtr/rtrtr"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	updatesFanned, _     = meter.Int64Counter("rtrtr_gate_updates_fanned_total")
	connectionsOpened, _ = meter.Int64Counter("rtrtr_rtr_connections_opened_total")
)

// Configure installs a TracerProvider on the global otel registry,
// replacing any provider installed before it. No exporter is attached:
// without one in the dependency set, spans are created and ended (so the
// fan-out/connection instrumentation below is real and exercised) but not
// shipped anywhere.
func Configure() {
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
}

// FanOut starts a span covering one Gate fan-out (UpdateData or
// UpdateStatus) for unit name,
// records the fan-out in the updates counter, and returns a func that ends
// the span. Callers defer the returned func.
func FanOut(ctx context.Context, unit string, subscribers int) func() {
	ctx, span := tracer.Start(ctx, "gate.fan_out", trace.WithAttributes(
		attribute.String("unit", unit),
		attribute.Int("subscribers", subscribers),
	))
	updatesFanned.Add(ctx, 1, metric.WithAttributes(attribute.String("unit", unit)))
	return func() { span.End() }
}

// Connection starts a span covering one RTR client connection's lifetime
// for target name, and records it in the connections counter. Callers
// defer the returned func for as long as the connection is served.
func Connection(ctx context.Context, target, remoteAddr string) (context.Context, func()) {
	ctx, span := tracer.Start(ctx, "rtr.connection", trace.WithAttributes(
		attribute.String("target", target),
		attribute.String("remote_addr", remoteAddr),
	))
	connectionsOpened.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target)))
	return ctx, func() { span.End() }
}
