package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPerformance_SnapshotIsZeroBeforeAnyEvents(t *testing.T) {
	p := NewPerformance()
	snap := p.Snapshot()

	assert.Equal(t, int64(0), snap.EventCount)
	assert.Equal(t, 0.0, snap.FlagRate)
	assert.Equal(t, 0.0, snap.AverageLatencyMS)
}

func TestPerformance_RecordEventAccumulatesAverages(t *testing.T) {
	p := NewPerformance()

	p.RecordEvent(EventSummary{Flagged: true, LatencyMS: 10, PropagationDepth: 2})
	p.RecordEvent(EventSummary{Flagged: false, LatencyMS: 20, PropagationDepth: 0})

	snap := p.Snapshot()
	assert.Equal(t, int64(2), snap.EventCount)
	assert.Equal(t, 0.5, snap.FlagRate)
	assert.Equal(t, 15.0, snap.AverageLatencyMS)
	assert.Equal(t, 1.0, snap.AveragePropagationDepth)
}

func TestPerformance_RecordEventIsConcurrencySafe(t *testing.T) {
	p := NewPerformance()

	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func() {
			p.RecordEvent(EventSummary{LatencyMS: 1})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 50; i++ {
		<-done
	}

	assert.Equal(t, int64(50), p.Snapshot().EventCount)
}
