// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// recording installs a synchronous provider that keeps ended spans.
func recording(t *testing.T, rate float64) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	p := install(sdktrace.WithSpanProcessor(rec), resource.Empty(), rate)
	t.Cleanup(func() {
		_ = p.Shutdown(context.Background())
		otel.SetTracerProvider(noop.NewTracerProvider())
	})
	return rec
}

func TestNewProviderDisabledIsNoop(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{ServiceName: "eventcast"})
	require.NoError(t, err)
	assert.Nil(t, p.tp)

	_, span := otel.Tracer("test").Start(context.Background(), "machine.run")
	assert.False(t, span.IsRecording())
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderRejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "zipkin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported exporter "zipkin"`)
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 2, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: -1, want: "AlwaysOffSampler"},
		{rate: 0.5, want: "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, newSampler(tt.rate).Description(), "rate %v", tt.rate)
	}
}

func TestRunSpanCarriesAttributes(t *testing.T) {
	rec := recording(t, 1)

	ctx, span := StartSpan(context.Background(), "machine", "machine.run", RunAttributes("run-1", "acme", "luma")...)
	assert.Equal(t, span, trace.SpanFromContext(ctx))
	EndSpan(span, nil)

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "machine.run", ended[0].Name())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)

	attrs := map[string]string{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "run-1", attrs[RunIDKey])
	assert.Equal(t, "acme", attrs[TenantKey])
	assert.Equal(t, "luma", attrs[PlatformKey])
}

func TestEndSpanRecordsError(t *testing.T) {
	rec := recording(t, 1)

	_, span := StartSpan(context.Background(), "browser", "browser.poll")
	EndSpan(span, errors.New("provider unavailable"))

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "provider unavailable", ended[0].Status().Description)
	require.NotEmpty(t, ended[0].Events())
	assert.Equal(t, "exception", ended[0].Events()[0].Name)
}

func TestZeroRateDropsRootSpans(t *testing.T) {
	rec := recording(t, 0)
	_, span := StartSpan(context.Background(), "workflow", "workflow.run")
	assert.False(t, span.IsRecording())
	EndSpan(span, nil)
	assert.Empty(t, rec.Ended())
}

func TestProviderShutdownOnce(t *testing.T) {
	p := install(sdktrace.WithSpanProcessor(tracetest.NewSpanRecorder()), resource.Empty(), 1)
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Shutdown(context.Background()))
		}()
	}
	wg.Wait()
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "eventcast", cfg.ServiceName)
	assert.Equal(t, "grpc", cfg.ExporterType)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
}
