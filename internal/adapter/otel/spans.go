package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "profile-service"

// StartProfileSpan starts a span for a single-profile operation (get, create,
// update, delete).
func StartProfileSpan(ctx context.Context, op string, bankID, userID int64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "profile."+op,
		trace.WithAttributes(
			attribute.Int64("bank.id", bankID),
			attribute.Int64("user.id", userID),
		),
	)
}

// StartListSpan starts a span for a bulk list with enrichment.
func StartListSpan(ctx context.Context, bankID int64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "profile.list",
		trace.WithAttributes(attribute.Int64("bank.id", bankID)),
	)
}

// StartProbeSpan starts a span for one photo probe.
func StartProbeSpan(ctx context.Context, bankID, userID int64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "photo_probe",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int64("bank.id", bankID),
			attribute.Int64("user.id", userID),
		),
	)
}
