package observability

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, testLogger)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("disabled tracing produced a recording span")
	}
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitTracingStdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "groundtrack-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, testLogger)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() {
		_, _ = InitTracing(context.Background(), TracingConfig{}, testLogger)
	})

	_, span := otel.Tracer("test").Start(context.Background(), "build-trajectory")
	if !span.SpanContext().IsValid() {
		t.Error("span context invalid with tracing enabled")
	}
	span.End()

	ShutdownWithTimeout(context.Background(), shutdown, testLogger)
	out := buf.String()
	for _, want := range []string{"build-trajectory", "groundtrack-test"} {
		if !strings.Contains(out, want) {
			t.Errorf("exported spans missing %q:\n%s", want, out)
		}
	}
}

func TestInitTracingUnsupportedExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, testLogger)
	if err == nil || !strings.Contains(err.Error(), "unsupported tracing exporter") {
		t.Errorf("err = %v, want unsupported exporter", err)
	}
}

func TestShutdownWithTimeoutNil(t *testing.T) {
	ShutdownWithTimeout(context.Background(), nil, testLogger)
}
