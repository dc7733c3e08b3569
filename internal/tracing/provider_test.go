package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background(), "", "gqlauth-test")
	require.NoError(t, err)
	assert.Equal(t, before, otel.GetTracerProvider(), "no provider is installed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, shutdown(ctx))
}

func TestSetup_InstallsProvider(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	// non-routable, nothing is exported
	shutdown, err := Setup(context.Background(), "http://192.0.2.1:4318", "gqlauth-test")
	require.NoError(t, err)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)

	// nothing was recorded, so the flush has nothing to send
	require.NoError(t, shutdown(context.Background()))
}
