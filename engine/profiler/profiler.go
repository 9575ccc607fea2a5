package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-draw/logger"
)

// Snapshot is the summary of one reporting interval.
type Snapshot struct {
	FPS          float64
	Frames       int
	Aborted      int
	AvgFrameTime time.Duration
	MaxFrameTime time.Duration
	HeapMB       float64
	AllocRateMB  float64
	GCCount      uint32
	MaxGCPause   time.Duration
}

// Profiler tracks frame rate, CPU frame time, aborted frames and memory statistics.
// Each interval is logged at Info through the "profiler" component.
type Profiler struct {
	now            func() time.Time
	updateInterval time.Duration
	readMem        bool

	lastTime   time.Time
	frameCount int
	aborted    int
	frameTotal time.Duration
	frameMax   time.Duration

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	last Snapshot
}

// ProfilerOption configures a Profiler.
type ProfilerOption func(*Profiler)

// WithInterval sets how often a Snapshot is produced. Defaults to one second.
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// WithMemStats turns runtime memory sampling on or off. It is on by default;
// runtime.ReadMemStats stops the world, so headless benchmarks may turn it off.
func WithMemStats(enabled bool) ProfilerOption {
	return func(p *Profiler) {
		p.readMem = enabled
	}
}

// NewProfiler creates a Profiler.
//
// Parameters:
//   - options: variadic list of ProfilerOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		now:            time.Now,
		updateInterval: time.Second,
		readMem:        true,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick records one frame and, once the interval has elapsed, logs and stores a Snapshot.
//
// Parameters:
//   - frameTime: CPU time spent encoding and submitting the frame
//   - err: the frame's error; a non-nil error counts the frame as aborted
//
// Returns:
//   - bool: true if a Snapshot was produced this tick
func (p *Profiler) Tick(frameTime time.Duration, err error) bool {
	p.frameCount++
	if err != nil {
		p.aborted++
	}
	p.frameTotal += frameTime
	p.frameMax = max(p.frameMax, frameTime)

	current := p.now()
	elapsed := current.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	s := Snapshot{
		FPS:          float64(p.frameCount) / elapsed.Seconds(),
		Frames:       p.frameCount,
		Aborted:      p.aborted,
		AvgFrameTime: p.frameTotal / time.Duration(p.frameCount),
		MaxFrameTime: p.frameMax,
	}
	if p.readMem {
		p.sampleMemory(&s, elapsed)
	}

	logger.Component("profiler").Info("frame stats",
		"fps", s.FPS, "frames", s.Frames, "aborted", s.Aborted,
		"avg_frame", s.AvgFrameTime, "max_frame", s.MaxFrameTime,
		"heap_mb", s.HeapMB, "alloc_rate_mb", s.AllocRateMB, "gc", s.GCCount, "max_gc_pause", s.MaxGCPause)

	p.last = s
	p.lastTime = current
	p.frameCount = 0
	p.aborted = 0
	p.frameTotal = 0
	p.frameMax = 0
	return true
}

// sampleMemory fills the heap, allocation-rate and GC fields of s.
func (p *Profiler) sampleMemory(s *Snapshot, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	s.GCCount = gcCount
	// PauseNs is a circular buffer of the last 256 pauses.
	start := p.lastGCCount
	if gcCount-start > 256 {
		start = gcCount - 256
	}
	for i := start; i < gcCount; i++ {
		s.MaxGCPause = max(s.MaxGCPause, time.Duration(p.memStats.PauseNs[i%256]))
	}
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}

// Last returns the most recent Snapshot, or the zero Snapshot before the first interval.
func (p *Profiler) Last() Snapshot {
	return p.last
}
