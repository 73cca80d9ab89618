// Package tracing holds the OTel helpers shared by the Lambda entry
// points: X-Ray tracer-provider setup and typed span attributes.
package tracing

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda/xrayconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/isb-tools/billing-separator"

// Init creates the tracer provider configured for X-Ray export.
func Init(ctx context.Context) (*sdktrace.TracerProvider, error) {
	return xrayconfig.NewTracerProvider(ctx)
}

// StartHandlerSpan starts a span for one handler invocation.
func StartHandlerSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartColdStartSpan starts a span covering init-time AWS calls.
func StartColdStartSpan(ctx context.Context, function string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "cold-start",
		trace.WithAttributes(Function(function)))
}

// AccountID returns the account id span attribute.
func AccountID(id string) attribute.KeyValue {
	return attribute.String("account_id", id)
}

// EventID returns the CloudTrail event id span attribute.
func EventID(id string) attribute.KeyValue {
	return attribute.String("event_id", id)
}

// SchedulerName returns the schedule name span attribute.
func SchedulerName(name string) attribute.KeyValue {
	return attribute.String("scheduler_name", name)
}

// Function returns the Lambda function name span attribute.
func Function(name string) attribute.KeyValue {
	return attribute.String("function", name)
}
