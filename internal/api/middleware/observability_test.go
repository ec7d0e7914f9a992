package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/botforge/botforge/internal/api/middleware"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = orig })
	return &buf
}

func TestLogger_EmitsRequestID(t *testing.T) {
	buf := captureLogs(t)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger)
	r.Get("/api/v1/bots/{botID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bots/bot-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Failed to parse log line: %v", err)
	}

	reqID, _ := line["request_id"].(string)
	if reqID == "" {
		t.Error("Expected log line to carry the request ID")
	}
	if line["method"] != "GET" {
		t.Errorf("method = %v, want GET", line["method"])
	}
	if line["path"] != "/api/v1/bots/bot-1" {
		t.Errorf("path = %v, want /api/v1/bots/bot-1", line["path"])
	}
	if line["status"] != float64(http.StatusOK) {
		t.Errorf("status = %v, want %d", line["status"], http.StatusOK)
	}
}

func TestLogger_WarnsOnClientError(t *testing.T) {
	buf := captureLogs(t)

	handler := middleware.Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bots/missing", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Failed to parse log line: %v", err)
	}
	if line["level"] != "warn" {
		t.Errorf("level = %v, want warn", line["level"])
	}
}

func TestTelemetry_SpanNamedAfterRoutePattern(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Telemetry)
	r.Get("/api/v1/bots/{botID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bots/bot-1", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("Recorded %d spans, want 1", len(spans))
	}
	if got, want := spans[0].Name(), "GET /api/v1/bots/{botID}"; got != want {
		t.Errorf("Span name = %q, want %q", got, want)
	}

	var rawPath string
	for _, attr := range spans[0].Attributes() {
		if string(attr.Key) == "url.path" {
			rawPath = attr.Value.AsString()
		}
	}
	if rawPath != "/api/v1/bots/bot-1" {
		t.Errorf("url.path attribute = %q, want the raw request path", rawPath)
	}
}
