// Package capture provides symbol capture buffers. They decouple the display
// refresh from the demodulation rate: the pipeline pushes every demodulated
// batch, the display copies a bounded window out at its own cadence.
//
// Two disciplines are available:
//
//	Ring  - continuous, keeps the latest N symbols;
//	Gated - snapshot-and-hold, refreshes a fixed frame at most once per period.
//
// Both hand out copies only and never expose internal storage.
package capture

import (
	"time"

	"github.com/dudk/pskrx/metric"
)

// Buffer is a fixed-capacity store of captured symbols.
type Buffer interface {
	// Push offers a batch of symbols. Zero-length batches are ignored.
	Push(symbols []complex64)
	// Copy copies up to len(dst) captured symbols into dst and returns
	// the number of copied symbols.
	Copy(dst []complex64) int
	// Reset zeroes the buffer.
	Reset()
	// Cap returns the fixed capacity of the buffer.
	Cap() int
}

// Option configures a buffer.
type Option func(*options)

type options struct {
	metric *metric.Metric
	now    func() time.Time
}

// WithMetric counts captured and dropped symbols.
func WithMetric(m *metric.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithClock replaces the wall clock used by gated buffers.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
