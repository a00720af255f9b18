package capture

import (
	"sync"

	"github.com/dudk/pskrx/metric"
)

// Ring is a continuous capture buffer. Every pushed symbol is kept until
// it is evicted by a newer one.
type Ring struct {
	mu     sync.Mutex
	data   []complex64
	start  int // index of the oldest symbol.
	size   int
	metric *metric.Metric
}

// NewRing returns a ring buffer of provided capacity. Capacity must be positive.
func NewRing(capacity int, opts ...Option) *Ring {
	if capacity < 1 {
		panic("capture: ring capacity must be positive")
	}
	o := newOptions(opts)
	return &Ring{
		data:   make([]complex64, capacity),
		metric: o.metric,
	}
}

// Push appends symbols, evicting the oldest when capacity is exceeded.
func (r *Ring) Push(symbols []complex64) {
	if len(symbols) == 0 {
		return
	}
	r.mu.Lock()
	capacity := len(r.data)
	if len(symbols) >= capacity {
		// only the tail survives.
		copy(r.data, symbols[len(symbols)-capacity:])
		r.start, r.size = 0, capacity
	} else {
		for _, s := range symbols {
			r.data[(r.start+r.size)%capacity] = s
			if r.size < capacity {
				r.size++
			} else {
				r.start = (r.start + 1) % capacity
			}
		}
	}
	r.mu.Unlock()
	r.metric.Symbols(metric.Captured, len(symbols))
}

// Copy copies the most recent symbols in arrival order, the newest last.
// If dst is shorter than the number of captured symbols, the oldest are
// left out.
func (r *Ring) Copy(dst []complex64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.size
	if len(dst) < n {
		n = len(dst)
	}
	capacity := len(r.data)
	first := r.start + r.size - n
	for i := 0; i < n; i++ {
		dst[i] = r.data[(first+i)%capacity]
	}
	return n
}

// Reset drops all captured symbols.
func (r *Ring) Reset() {
	r.mu.Lock()
	for i := range r.data {
		r.data[i] = 0
	}
	r.start, r.size = 0, 0
	r.mu.Unlock()
}

// Cap returns capacity of the ring.
func (r *Ring) Cap() int {
	return len(r.data)
}

// Len returns number of captured symbols.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
