package orderledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLedger(t *testing.T) {
	ledger, err := Open(":memory:")
	require.NoError(t, err)
	defer ledger.Close()

	ctx := context.Background()

	seen, err := ledger.Seen(ctx, "FP-1")
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, ledger.MarkSeen(ctx, "FP-1"))
	// marking twice is fine
	require.NoError(t, ledger.MarkSeen(ctx, "FP-1"))

	seen, err = ledger.Seen(ctx, "FP-1")
	require.NoError(t, err)
	require.True(t, seen)

	seen, err = ledger.Seen(ctx, "FP-2")
	require.NoError(t, err)
	require.False(t, seen)
}

func TestPrune(t *testing.T) {
	ledger, err := Open(":memory:")
	require.NoError(t, err)
	defer ledger.Close()

	ctx := context.Background()
	require.NoError(t, ledger.MarkSeen(ctx, "FP-1"))

	// entries younger than the window survive
	require.NoError(t, ledger.Prune(ctx, time.Hour))
	seen, err := ledger.Seen(ctx, "FP-1")
	require.NoError(t, err)
	require.True(t, seen)

	// a zero window drops everything marked before now
	require.NoError(t, ledger.Prune(ctx, -time.Second))
	seen, err = ledger.Seen(ctx, "FP-1")
	require.NoError(t, err)
	require.False(t, seen)
}
