package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSamplePerfStats(t *testing.T) {
	cleanup := SetupForTesting(t, "test:telemetry")
	t.Cleanup(cleanup)

	require.NotPanics(t, func() {
		samplePerfStats(context.Background())
	})
}
