// Package pump provides sources of complex samples for the pipeline: raw
// cf32 files and a synthetic PSK generator.
package pump

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/dudk/pskrx/signal"
)

// Option configures a pump.
type Option func(*options)

type options struct {
	loop  bool
	noise float64
	phase float64
	rate  float64
	limit int
	seed  int64
}

// WithLoop makes file pump restart from the beginning at the end of file.
func WithLoop() Option {
	return func(o *options) {
		o.loop = true
	}
}

// WithNoise adds gaussian noise of provided standard deviation to
// generated samples.
func WithNoise(sigma float64) Option {
	return func(o *options) {
		o.noise = sigma
	}
}

// WithPhase rotates generated constellation by provided angle in radians.
func WithPhase(phase float64) Option {
	return func(o *options) {
		o.phase = phase
	}
}

// WithRate limits generator to provided samples per second.
func WithRate(sampleRate float64) Option {
	return func(o *options) {
		o.rate = sampleRate
	}
}

// WithLimit stops generator after provided number of samples.
func WithLimit(samples int) Option {
	return func(o *options) {
		o.limit = samples
	}
}

// WithSeed sets seed of the symbol and noise source.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

func newOptions(opts []Option) options {
	o := options{seed: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// File reads raw little-endian float32 I/Q samples.
type File struct {
	path string
	loop bool
	file *os.File
	r    *bufio.Reader
	raw  []byte
}

// NewFile opens raw cf32 file.
func NewFile(path string, opts ...Option) (*File, error) {
	o := newOptions(opts)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{
		path: path,
		loop: o.loop,
		file: f,
		r:    bufio.NewReader(f),
	}, nil
}

// Pump reads samples into buf. At the end of file looped pumps start over,
// others return io.EOF. Trailing partial sample is discarded.
func (p *File) Pump(buf []complex64) (int, error) {
	size := len(buf) * signal.BytesPerSample
	if cap(p.raw) < size {
		p.raw = make([]byte, size)
	}
	p.raw = p.raw[:size]
	rewound := false
	for {
		n, err := io.ReadFull(p.r, p.raw)
		if samples := n / signal.BytesPerSample; samples > 0 {
			return signal.Decode(buf, p.raw[:n]), nil
		}
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, fmt.Errorf("pump %v: %w", p.path, err)
		}
		// empty file must not loop forever.
		if !p.loop || rewound {
			return 0, io.EOF
		}
		if _, err := p.file.Seek(0, io.SeekStart); err != nil {
			return 0, fmt.Errorf("pump %v: %w", p.path, err)
		}
		p.r.Reset(p.file)
		rewound = true
	}
}

// Close closes the file.
func (p *File) Close() error {
	return p.file.Close()
}
