package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	restoreGlobalProvider(t)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder
}

func attrMap(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestStartDBSpan(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		op       DBOperation
		attrs    []attribute.KeyValue
		wantName string
	}{
		{"job lookup", "jobs", DBOperationQuery, nil, "query jobs"},
		{"profile hydration", "freelancer_profiles", DBOperationQuery, nil, "query freelancer_profiles"},
		{"shortlist replace", "shortlist", DBOperationExec, nil, "exec shortlist"},
		{"proposal insert", "proposals", DBOperationInsert, nil, "insert proposals"},
		{
			"counter update",
			"rate_limit_counters",
			DBOperationUpdate,
			[]attribute.KeyValue{AttrRateLimit.String("proposal:user:u1"), AttrRateLimitPolicy.String("proposal")},
			"update rate_limit_counters",
		},
		{"no table", "", DBOperationQuery, nil, "query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := withRecorder(t)

			_, end := StartDBSpan(context.Background(), tt.table, tt.op, tt.attrs...)
			end(nil)

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			span := spans[0]
			if span.Name() != tt.wantName {
				t.Errorf("name = %q, want %q", span.Name(), tt.wantName)
			}
			if span.SpanKind() != trace.SpanKindClient {
				t.Errorf("kind = %v, want client", span.SpanKind())
			}
			if span.InstrumentationScope().Name != DBInstrumentationName {
				t.Errorf("scope = %q, want %q", span.InstrumentationScope().Name, DBInstrumentationName)
			}

			attrs := attrMap(span)
			if attrs["db.system"].AsString() != "postgresql" {
				t.Errorf("db.system = %q", attrs["db.system"].AsString())
			}
			if attrs["db.operation"].AsString() != string(tt.op) {
				t.Errorf("db.operation = %q, want %q", attrs["db.operation"].AsString(), tt.op)
			}
			table, hasTable := attrs["db.sql.table"]
			if hasTable != (tt.table != "") || (hasTable && table.AsString() != tt.table) {
				t.Errorf("db.sql.table = %v (present %v), want %q", table, hasTable, tt.table)
			}
			for _, kv := range tt.attrs {
				if got := attrs[kv.Key]; got != kv.Value {
					t.Errorf("%s = %v, want %v", kv.Key, got, kv.Value)
				}
			}
		})
	}
}

func TestStartDBSpan_RecordsError(t *testing.T) {
	recorder := withRecorder(t)

	_, end := StartDBSpan(context.Background(), "shortlist", DBOperationExec)
	end(errors.New("deadlock detected"))

	span := recorder.Ended()[0]
	if span.Status().Code != codes.Error || span.Status().Description != "deadlock detected" {
		t.Errorf("status = %+v, want error with description", span.Status())
	}
	if len(span.Events()) == 0 || span.Events()[0].Name != "exception" {
		t.Error("expected a recorded exception event")
	}
}

func TestStartSpan_NestsUnderParent(t *testing.T) {
	recorder := withRecorder(t)

	ctx, endGenerate := StartSpan(context.Background(), "shortlist.generate", AttrJobID.String("job-7"))
	_, endRetrieve := StartSpan(ctx, "shortlist.retrieve")
	endRetrieve(nil)
	SetAttributes(ctx, AttrShortlistCount.Int(3))
	endGenerate(nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	retrieve, generate := spans[0], spans[1]
	if retrieve.Parent().SpanID() != generate.SpanContext().SpanID() {
		t.Error("shortlist.retrieve should be a child of shortlist.generate")
	}
	if generate.InstrumentationScope().Name != InstrumentationName {
		t.Errorf("scope = %q, want %q", generate.InstrumentationScope().Name, InstrumentationName)
	}
	attrs := attrMap(generate)
	if attrs[AttrJobID].AsString() != "job-7" {
		t.Errorf("job.id = %q, want job-7", attrs[AttrJobID].AsString())
	}
	if attrs[AttrShortlistCount].AsInt64() != 3 {
		t.Errorf("shortlist.count = %d, want 3", attrs[AttrShortlistCount].AsInt64())
	}
	if generate.Status().Code == codes.Error {
		t.Error("successful span should not carry an error status")
	}
}

func TestSetAttributes_WithoutSpan(t *testing.T) {
	// No span in the context: must be a no-op.
	SetAttributes(context.Background(), AttrJobID.String("job-1"))
}
