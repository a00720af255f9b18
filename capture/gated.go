package capture

import (
	"sync"
	"time"

	"github.com/dudk/pskrx/metric"
)

// DefaultPeriod is one display frame at 60 Hz.
const DefaultPeriod = time.Second / 60

// Gated is a snapshot-and-hold capture buffer. The frame is overwritten as
// a whole at most once per period and is immutable in between, so the
// display sees a stable picture regardless of the demodulation rate.
type Gated struct {
	mu        sync.Mutex
	data      []complex64
	period    time.Duration
	refreshed time.Time
	filled    bool
	refreshes int
	now       func() time.Time
	metric    *metric.Metric
}

// NewGated returns a gated buffer with a frame of provided size. Size must
// be positive. Non-positive period refreshes on every batch.
func NewGated(size int, period time.Duration, opts ...Option) *Gated {
	if size < 1 {
		panic("capture: gated size must be positive")
	}
	o := newOptions(opts)
	return &Gated{
		data:   make([]complex64, size),
		period: period,
		now:    o.now,
		metric: o.metric,
	}
}

// Push overwrites the frame with the batch if the period has elapsed since
// the last refresh. The batch is truncated to the frame size and the rest
// of the frame is zero-filled. Otherwise the batch is dropped.
func (g *Gated) Push(symbols []complex64) {
	if len(symbols) == 0 {
		return
	}
	now := g.now()
	g.mu.Lock()
	if g.filled && now.Sub(g.refreshed) <= g.period {
		g.mu.Unlock()
		g.metric.Symbols(metric.Dropped, len(symbols))
		return
	}
	n := copy(g.data, symbols)
	for i := n; i < len(g.data); i++ {
		g.data[i] = 0
	}
	g.refreshed = now
	g.filled = true
	g.refreshes++
	g.mu.Unlock()

	g.metric.Symbols(metric.Captured, n)
	g.metric.Symbols(metric.Dropped, len(symbols)-n)
}

// Copy copies the held frame, zero slots included. Nothing is copied
// before the first refresh.
func (g *Gated) Copy(dst []complex64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.filled {
		return 0
	}
	return copy(dst, g.data)
}

// Reset zeroes the frame and restarts the refresh clock, the next batch
// is accepted immediately.
func (g *Gated) Reset() {
	g.mu.Lock()
	for i := range g.data {
		g.data[i] = 0
	}
	g.filled = false
	g.refreshed = time.Time{}
	g.mu.Unlock()
}

// Cap returns size of the frame.
func (g *Gated) Cap() int {
	return len(g.data)
}

// Refreshes returns number of times the frame was overwritten.
func (g *Gated) Refreshes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refreshes
}
