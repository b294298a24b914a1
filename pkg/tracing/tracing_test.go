package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"postapi/internal/config"
)

func TestInit_Disabled(t *testing.T) {
	tp, err := Init(config.TracingConfig{Enabled: false}, "postapi")
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestInit_Enabled(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	// The gRPC connection is lazy, so no collector needs to listen.
	tp, err := Init(config.TracingConfig{
		Enabled: true,
		OTLP:    config.OTLPConfig{Endpoint: "127.0.0.1:4317", Insecure: true},
		Sampler: config.SamplerConfig{Type: "always_off"},
	}, "postapi")
	require.NoError(t, err)
	require.NotNil(t, tp.tp)
	assert.Same(t, tp.tp, otel.GetTracerProvider())

	ctx, cancel := context.WithTimeout(context.Background(), exporterTimeout)
	defer cancel()
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestKafkaHeaders_RoundTrip(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	ctx, parent := StartSubmissionSpan(context.Background(), "u-1", "report", "provider-1")
	headers := InjectTraceContext(ctx, []kafka.Header{{Key: "other", Value: []byte("x")}})
	parent.End()

	require.Len(t, headers, 2)
	assert.Equal(t, "traceparent", headers[1].Key)

	_, child := StartConsumerSpan(context.Background(), kafka.Message{Topic: "post-api-config", Headers: headers, Offset: 7})
	child.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "drain.submission", spans[0].Name())
	assert.Equal(t, "kafka.consume post-api-config", spans[1].Name())
	assert.Equal(t, spans[0].SpanContext().TraceID(), spans[1].SpanContext().TraceID())
	assert.Equal(t, trace.SpanKindConsumer, spans[1].SpanKind())
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		typ  string
		want string
	}{
		{"always_off", "AlwaysOffSampler"},
		{"always_on", "AlwaysOnSampler"},
		{"", "AlwaysOnSampler"},
		{"traceidratio", "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.want, samplerFor(config.SamplerConfig{Type: tt.typ, Param: 0.5}).Description())
		})
	}
}
