package ui

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/vaultindex/internal/queue"
)

func TestProgressTracker_Ratio(t *testing.T) {
	tracker := NewProgressTracker()

	tracker.Update(Snapshot{Progress: queue.Progress{Total: 4, Pending: 2, Completed: 1, Failed: 1}})

	stats := tracker.Stats()
	assert.Equal(t, 2, stats.Done)
	assert.InDelta(t, 0.5, stats.Ratio, 0.001)
}

func TestProgressTracker_EmptyQueue(t *testing.T) {
	stats := NewProgressTracker().Stats()

	assert.Zero(t, stats.Ratio)
	assert.Zero(t, stats.ETA)
}

func TestProgressTracker_Speed(t *testing.T) {
	// Given: samples one second apart
	tracker := NewProgressTracker()
	start := tracker.lastSample

	tracker.updateAt(Snapshot{Progress: queue.Progress{Total: 20, Completed: 10}}, start.Add(time.Second))
	tracker.updateAt(Snapshot{Progress: queue.Progress{Total: 20, Completed: 15}}, start.Add(2*time.Second))

	// Then: current speed follows the last delta, peak the highest
	stats := tracker.Stats()
	assert.InDelta(t, 5.0, stats.Speed.Current, 0.001)
	assert.InDelta(t, 10.0, stats.Speed.Peak, 0.001)
	assert.InDelta(t, 9.0, stats.Speed.Avg, 0.001)
}

func TestProgressTracker_IgnoresRapidSamples(t *testing.T) {
	tracker := NewProgressTracker()
	start := tracker.lastSample

	tracker.updateAt(Snapshot{Progress: queue.Progress{Total: 2, Completed: 1}}, start.Add(10*time.Millisecond))

	assert.Zero(t, tracker.Stats().Speed.Current)
	assert.Equal(t, 1, tracker.Stats().Done)
}

func TestSparkline_Render(t *testing.T) {
	s := NewSparkline(4)

	assert.Equal(t, "    ", s.Render(4))

	for _, v := range []float64{0, 1, 2, 4, 8} {
		s.Add(v)
	}

	// Oldest sample dropped; tallest bar is the maximum.
	assert.Equal(t, 4, s.Len())
	out := s.Render(4)
	assert.Equal(t, 4, utf8.RuneCountInString(out))
	assert.True(t, strings.HasSuffix(out, "█"))
	assert.Equal(t, "▁▂", string([]rune(out)[:2]))
}

func TestSparkline_RenderNarrower(t *testing.T) {
	s := NewSparkline(10)
	s.Add(1)
	s.Add(2)
	s.Add(3)

	assert.Equal(t, 2, utf8.RuneCountInString(s.Render(2)))
	assert.Equal(t, 5, utf8.RuneCountInString(s.Render(5)))
}
