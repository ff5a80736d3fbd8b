package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracing_SpanNameUsesRoute(t *testing.T) {
	spanRecorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder))
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	var traceID, spanID string
	handler := Tracing("test-service")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = GetTraceID(r)
		spanID = GetSpanID(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/jobs/4f1c/shortlist", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := spanRecorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "GET /jobs/{id}/shortlist" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}
	if traceID == "" || spanID == "" {
		t.Error("expected trace and span ids inside the handler")
	}
	if traceID != spans[0].SpanContext().TraceID().String() {
		t.Errorf("trace id mismatch: %s vs %s", traceID, spans[0].SpanContext().TraceID())
	}
}

func TestGetTraceID_NoSpan(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if GetTraceID(req) != "" || GetSpanID(req) != "" {
		t.Error("expected empty ids without an active span")
	}
}
