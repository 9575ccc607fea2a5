package profiler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestTickProducesSnapshotPerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithMemStats(false))

	clock.t = clock.t.Add(400 * time.Millisecond)
	assert.False(t, p.Tick(2*time.Millisecond, nil))
	clock.t = clock.t.Add(400 * time.Millisecond)
	assert.False(t, p.Tick(6*time.Millisecond, errors.New("aborted")))
	clock.t = clock.t.Add(200 * time.Millisecond)
	require.True(t, p.Tick(4*time.Millisecond, nil))

	s := p.Last()
	assert.Equal(t, 3, s.Frames)
	assert.Equal(t, 1, s.Aborted)
	assert.InDelta(t, 3.0, s.FPS, 1e-9)
	assert.Equal(t, 4*time.Millisecond, s.AvgFrameTime)
	assert.Equal(t, 6*time.Millisecond, s.MaxFrameTime)
	assert.Zero(t, s.HeapMB)

	// Counters reset for the next interval.
	clock.t = clock.t.Add(time.Second)
	require.True(t, p.Tick(time.Millisecond, nil))
	assert.Equal(t, 1, p.Last().Frames)
	assert.Equal(t, 0, p.Last().Aborted)
}

func TestTickSamplesMemory(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Millisecond))
	clock.t = clock.t.Add(time.Second)
	require.True(t, p.Tick(0, nil))
	assert.Greater(t, p.Last().HeapMB, 0.0)
}
