package capture

import (
	"sync"
	"time"
)

// fpsCounter estimates frames per second over a sliding window.
type fpsCounter struct {
	window time.Duration

	mu     sync.Mutex
	frames []time.Time
}

func newFPSCounter(window time.Duration) *fpsCounter {
	return &fpsCounter{window: window}
}

func (f *fpsCounter) tick(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, now)
	f.trim(now)
}

func (f *fpsCounter) rate(now time.Time) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trim(now)
	return float64(len(f.frames)) / f.window.Seconds()
}

func (f *fpsCounter) trim(now time.Time) {
	cutoff := now.Add(-f.window)
	i := 0
	for i < len(f.frames) && !f.frames[i].After(cutoff) {
		i++
	}
	f.frames = f.frames[i:]
}
