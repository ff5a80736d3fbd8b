package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scope names for tracers created by this package.
const (
	InstrumentationName   = "freelamatch"
	DBInstrumentationName = "freelamatch/db"
)

// Span attribute keys.
const (
	AttrJobID           = attribute.Key("job.id")
	AttrShortlistCount  = attribute.Key("shortlist.count")
	AttrRateLimit       = attribute.Key("ratelimit.key")
	AttrRateLimitPolicy = attribute.Key("ratelimit.policy")
	AttrRateLimitResult = attribute.Key("ratelimit.result")
)

// DBOperation is the db.operation of a SQL span.
type DBOperation string

const (
	DBOperationQuery  DBOperation = "query"
	DBOperationInsert DBOperation = "insert"
	DBOperationUpdate DBOperation = "update"
	// DBOperationExec covers multi-statement transactions.
	DBOperationExec DBOperation = "exec"
)

// StartDBSpan starts a client span named "<operation> <table>" for a SQL
// statement against Postgres.
//
//	ctx, endSpan := tracing.StartDBSpan(ctx, "shortlist", tracing.DBOperationExec)
//	defer func() { endSpan(err) }()
func StartDBSpan(ctx context.Context, table string, operation DBOperation, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	spanName := string(operation)
	if table != "" {
		spanName += " " + table
	}

	base := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", string(operation)),
	}
	if table != "" {
		base = append(base, attribute.String("db.sql.table", table))
	}

	ctx, span := otel.Tracer(DBInstrumentationName).Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(base, attrs...)...),
	)
	return ctx, endFunc(span)
}

// StartSpan starts an internal span such as "shortlist.generate".
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, endFunc(span)
}

// SetAttributes sets attributes on the span in ctx, if any.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
