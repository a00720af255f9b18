package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// RMS measures root mean square level of the last batch. It is a tap and
// produces no output.
type RMS struct {
	power []float64
	level float64
}

// Process measures the batch.
func (m *RMS) Process(in []complex64) ([]complex64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	if cap(m.power) < len(in) {
		m.power = make([]float64, len(in))
	}
	m.power = m.power[:len(in)]
	for i, s := range in {
		re, im := float64(real(s)), float64(imag(s))
		m.power[i] = re*re + im*im
	}
	m.level = math.Sqrt(floats.Sum(m.power) / float64(len(in)))
	return nil, nil
}

// Level returns linear RMS level.
func (m *RMS) Level() float64 {
	return m.level
}

// LevelDB returns RMS level in decibels.
func (m *RMS) LevelDB() float64 {
	return ToDB(m.level)
}
