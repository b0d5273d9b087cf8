package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/port-experimental/integration-healthcheck/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	provider, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.NotNil(t, provider.Tracer)

	// Disabled telemetry has no real tracer provider behind it.
	assert.Nil(t, provider.TracerProvider)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestProvider_Shutdown_Nil(t *testing.T) {
	provider := &telemetry.Provider{}
	assert.NoError(t, provider.Shutdown(context.Background()))
}
