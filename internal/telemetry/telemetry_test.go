package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "test", "")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupWithEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "test", "http://127.0.0.1:4318")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
