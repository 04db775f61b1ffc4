package tracing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false}, testLogger())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitUnsupportedExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, Exporter: "zipkin", SampleRatio: 1}, testLogger())
	assert.Error(t, err)
}

func TestInitStdout(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: true, Exporter: "stdout", SampleRatio: 1}, testLogger())
	require.NoError(t, err)
	Shutdown(context.Background(), shutdown, testLogger())
}

func TestStartEndRecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := Start(context.Background(), "feed.reload", attribute.String("feed.url", "http://example"))
	End(span, errors.New("boom"))

	_, second := Start(context.Background(), "geocode.reverse")
	End(second, nil)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "feed.reload", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
}
