package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartCommandSpan creates a span for a CLI command execution.
//
//	ctx, span := telemetry.StartCommandSpan(ctx, "serve")
//	defer span.End()
func StartCommandSpan(ctx context.Context, cmdName string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("commands")
	ctx, span := tracer.Start(ctx, "command."+cmdName)

	span.SetAttributes(
		attribute.String("command", cmdName),
		attribute.String("component", "cli"),
	)

	return ctx, span
}

// StartTurnSpan creates a span for one user message through the router.
// The message text is never recorded, only its length.
func StartTurnSpan(ctx context.Context, textLen int, testActive bool) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("router")
	ctx, span := tracer.Start(ctx, "router.turn")

	span.SetAttributes(
		attribute.Int("message_length", textLen),
		attribute.Bool("test_active", testActive),
		attribute.String("component", "router"),
	)

	return ctx, span
}

// StartGeneratorSpan creates a span for a chat generator call.
//
//	ctx, span := telemetry.StartGeneratorSpan(ctx, "ollama", "guidance")
//	defer span.End()
func StartGeneratorSpan(ctx context.Context, providerName, mode string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("providers")
	ctx, span := tracer.Start(ctx, "generator.stream")

	span.SetAttributes(
		attribute.String("provider", providerName),
		attribute.String("prompt_mode", mode),
		attribute.String("component", "provider"),
	)

	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.Bool("error", true),
	)
}

// RecordDuration records the duration of an operation as a span attribute.
//
//	telemetry.RecordDuration(span, "first_token", time.Since(start))
func RecordDuration(span trace.Span, name string, duration time.Duration) {
	span.SetAttributes(
		attribute.Int64(name+"_ms", duration.Milliseconds()),
	)
}
