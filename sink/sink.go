// Package sink provides optional terminal stages for demodulated symbols:
// file recording and network streaming. Symbols are encoded as
// little-endian float32 I/Q pairs unless the file format says otherwise.
package sink

import (
	"github.com/dudk/pskrx/log"
	"github.com/dudk/pskrx/metric"
)

// Names of sinks in the stage graph and metrics.
const (
	Record  = "record"
	Network = "network"
)

// MaxDatagram is the largest UDP payload sent in one datagram. It fits an
// Ethernet frame without fragmentation.
const MaxDatagram = 1472

// DefaultTTL is the multicast TTL.
const DefaultTTL = 1

// Option configures a sink.
type Option func(*options)

type options struct {
	metric      *metric.Metric
	logger      log.Logger
	sampleRate  int
	ttl         int
	rtp         bool
	payloadType uint8
}

// WithMetric counts written bytes and failed writes.
func WithMetric(m *metric.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithLogger sets logger for write failures.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithSampleRate sets rate written to wav headers.
func WithSampleRate(rate int) Option {
	return func(o *options) {
		o.sampleRate = rate
	}
}

// WithTTL sets multicast TTL of network sink.
func WithTTL(ttl int) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithRTP wraps network datagrams in RTP packets of provided payload type.
func WithRTP(payloadType uint8) Option {
	return func(o *options) {
		o.rtp = true
		o.payloadType = payloadType
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:     log.Silent(),
		sampleRate: 1,
		ttl:        DefaultTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
