package logsink

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBufferCaps(t *testing.T) {
	sink := NewSink(3)
	for i := 0; i < 5; i++ {
		sink.Append(SeverityInfo, fmt.Sprintf("line %d", i))
	}

	entries := sink.Entries()
	require.Len(t, entries, 3)
	require.Equal(t, "line 2", entries[0].Message)
	require.Equal(t, "line 4", entries[2].Message)
}

func TestConcurrentAppend(t *testing.T) {
	sink := NewSink(1024)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				sink.Append(SeverityDebug, fmt.Sprintf("g%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	require.Equal(t, 800, sink.Len())
}

func TestSlogHandler(t *testing.T) {
	sink := NewSink(16)
	logger := slog.New(NewHandler(sink, slog.LevelInfo))

	logger.Debug("dropped")
	logger.Info("bumped", "node", "149")
	logger.Error("boom", "err", "network: timeout")

	entries := sink.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, SeverityInfo, entries[0].Severity)
	require.Contains(t, entries[0].Message, "bumped")
	require.Contains(t, entries[0].Message, "node=149")
	require.Equal(t, SeverityError, entries[1].Severity)
}
