package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracer(t *testing.T) {
	shutdown, err := InitTracer("skill-analytics-test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok)

	require.NoError(t, shutdown(context.Background()))
}
