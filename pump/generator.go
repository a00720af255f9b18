package pump

import (
	"io"
	"math"
	"math/cmplx"
	"math/rand"
	"time"
)

// Generator produces rectangular PSK symbols. Constellation points are
// placed where the carrier loop locks: BPSK on the real axis, higher
// orders offset by half a sector.
type Generator struct {
	points []complex128
	sps    int
	noise  float64
	rate   float64
	limit  int
	rng    *rand.Rand

	symbol   complex128
	held     int // samples of current symbol already emitted.
	produced int
	started  time.Time
}

// NewGenerator returns generator of provided order with integer samples
// per symbol. Order and samples per symbol below two and one are raised.
func NewGenerator(order, samplesPerSymbol int, opts ...Option) *Generator {
	o := newOptions(opts)
	if order < 2 {
		order = 2
	}
	if samplesPerSymbol < 1 {
		samplesPerSymbol = 1
	}
	offset := o.phase
	if order > 2 {
		offset += math.Pi / float64(order)
	}
	points := make([]complex128, order)
	for k := range points {
		points[k] = cmplx.Rect(1, 2*math.Pi*float64(k)/float64(order)+offset)
	}
	return &Generator{
		points: points,
		sps:    samplesPerSymbol,
		noise:  o.noise,
		rate:   o.rate,
		limit:  o.limit,
		rng:    rand.New(rand.NewSource(o.seed)),
	}
}

// Points returns constellation of the generator.
func (g *Generator) Points() []complex128 {
	return append([]complex128(nil), g.points...)
}

// Pump fills buf. With rate set it blocks to keep real time pace.
func (g *Generator) Pump(buf []complex64) (int, error) {
	n := len(buf)
	if g.limit > 0 {
		if g.produced >= g.limit {
			return 0, io.EOF
		}
		if left := g.limit - g.produced; left < n {
			n = left
		}
	}
	g.wait(n)
	for i := range buf[:n] {
		if g.held == 0 {
			g.symbol = g.points[g.rng.Intn(len(g.points))]
		}
		s := g.symbol
		if g.noise > 0 {
			s += complex(g.rng.NormFloat64()*g.noise, g.rng.NormFloat64()*g.noise)
		}
		buf[i] = complex64(s)
		g.held = (g.held + 1) % g.sps
	}
	g.produced += n
	return n, nil
}

// wait sleeps until n more samples are due.
func (g *Generator) wait(n int) {
	if g.rate <= 0 {
		return
	}
	if g.started.IsZero() {
		g.started = time.Now()
	}
	due := g.started.Add(time.Duration(float64(g.produced+n) / g.rate * float64(time.Second)))
	if d := time.Until(due); d > 0 {
		time.Sleep(d)
	}
}
