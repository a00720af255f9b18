// Package mock provides mocks for the block library and sample sources and
// allows to test the controller without real signal processing.
package mock

import (
	"io"
	"sync"
	"time"

	"github.com/dudk/pskrx/dsp"
)

// Block kinds created by the library.
const (
	Filter  = "filter"
	AGC     = "agc"
	Carrier = "carrier"
	Timing  = "timing"
	Meter   = "meter"
)

// Parameters set on blocks.
const (
	Taps      = "taps"
	Alpha     = "alpha"
	Omega     = "omega"
	GainOmega = "gain_omega"
	GainMu    = "gain_mu"
)

// Library mocks a dsp.Library. Every block passes samples through
// unchanged. Creations and parameter sets are counted.
type Library struct {
	// Level is reported by level meters.
	Level float64
	// ErrorOnCreate is returned by every create call when set.
	ErrorOnCreate error

	mu      sync.Mutex
	created map[string]int
	set     map[string]int
	values  map[string]float64
	taps    []float64
	order   int
}

// Created returns number of created blocks of provided kind.
func (l *Library) Created(kind string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.created[kind]
}

// Set returns number of times the parameter was set, creation included.
func (l *Library) Set(param string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set[param]
}

// Value returns last value of scalar parameter.
func (l *Library) Value(param string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.values[param]
}

// Taps returns last filter taps.
func (l *Library) Taps() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]float64(nil), l.taps...)
}

// Order returns order of the last created carrier recovery.
func (l *Library) Order() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order
}

// Fail makes subsequent create calls return err. Nil restores creation.
func (l *Library) Fail(err error) {
	l.mu.Lock()
	l.ErrorOnCreate = err
	l.mu.Unlock()
}

func (l *Library) create(kind string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ErrorOnCreate != nil {
		return l.ErrorOnCreate
	}
	if l.created == nil {
		l.created = make(map[string]int)
	}
	l.created[kind]++
	return nil
}

func (l *Library) setValue(param string, v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.set == nil {
		l.set = make(map[string]int)
		l.values = make(map[string]float64)
	}
	l.set[param]++
	l.values[param] = v
}

func (l *Library) setTaps(taps []float64) {
	l.setValue(Taps, float64(len(taps)))
	l.mu.Lock()
	l.taps = append(l.taps[:0], taps...)
	l.mu.Unlock()
}

// NewFilter implements dsp.Library.
func (l *Library) NewFilter(taps []float64) (dsp.Filter, error) {
	if err := l.create(Filter); err != nil {
		return nil, err
	}
	l.setTaps(taps)
	return &block{lib: l}, nil
}

// NewGainControl implements dsp.Library.
func (l *Library) NewGainControl(rate, reference, gain, maxGain float64) (dsp.GainControl, error) {
	if err := l.create(AGC); err != nil {
		return nil, err
	}
	return &block{lib: l}, nil
}

// NewCarrierRecovery implements dsp.Library.
func (l *Library) NewCarrierRecovery(alpha float64, order int) (dsp.CarrierRecovery, error) {
	if err := l.create(Carrier); err != nil {
		return nil, err
	}
	l.setValue(Alpha, alpha)
	l.mu.Lock()
	l.order = order
	l.mu.Unlock()
	return &block{lib: l}, nil
}

// NewTimingRecovery implements dsp.Library.
func (l *Library) NewTimingRecovery(omega, gainOmega, mu, gainMu, omegaRelLimit float64) (dsp.TimingRecovery, error) {
	if err := l.create(Timing); err != nil {
		return nil, err
	}
	l.setValue(Omega, omega)
	l.setValue(GainOmega, gainOmega)
	l.setValue(GainMu, gainMu)
	return &block{lib: l}, nil
}

// NewLevelMeter implements dsp.Library.
func (l *Library) NewLevelMeter() (dsp.LevelMeter, error) {
	if err := l.create(Meter); err != nil {
		return nil, err
	}
	return &meter{lib: l}, nil
}

// block is an identity block that reports parameter sets to its library.
type block struct {
	counter
	lib *Library
}

func (b *block) Process(in []complex64) ([]complex64, error) {
	b.advance(len(in))
	return in, nil
}

func (b *block) SetTaps(taps []float64) { b.lib.setTaps(taps) }
func (b *block) SetAlpha(v float64) { b.lib.setValue(Alpha, v) }
func (b *block) SetOmega(v float64) { b.lib.setValue(Omega, v) }
func (b *block) SetGainOmega(v float64) { b.lib.setValue(GainOmega, v) }
func (b *block) SetGainMu(v float64) { b.lib.setValue(GainMu, v) }

type meter struct {
	counter
	lib *Library
}

func (m *meter) Process(in []complex64) ([]complex64, error) {
	m.advance(len(in))
	return nil, nil
}

func (m *meter) Level() float64 {
	m.lib.mu.Lock()
	defer m.lib.mu.Unlock()
	return m.lib.Level
}

func (m *meter) LevelDB() float64 {
	return dsp.ToDB(m.Level())
}

// Pump mocks a sample source. It produces Limit samples of Value.
type Pump struct {
	counter
	Interval    time.Duration
	Limit       int
	Value       complex64
	ErrorOnCall error
}

// Pump fills the buffer. io.EOF is returned once limit is reached.
func (m *Pump) Pump(buf []complex64) (int, error) {
	if m.ErrorOnCall != nil {
		return 0, m.ErrorOnCall
	}
	if m.samples >= m.Limit {
		return 0, io.EOF
	}
	time.Sleep(m.Interval)

	bs := len(buf)
	// check if we need a shorter.
	if left := m.Limit - m.samples; left < bs {
		bs = left
	}
	for i := range buf[:bs] {
		buf[i] = m.Value
	}
	m.advance(bs)
	return bs, nil
}

// counter counts calls and samples.
type counter struct {
	messages int
	samples  int
}

// Advance counter's metrics.
func (c *counter) advance(size int) {
	c.messages++
	c.samples = c.samples + size
}

// Count returns calls and samples metrics.
func (c *counter) Count() (int, int) {
	return c.messages, c.samples
}
