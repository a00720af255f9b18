package dsp

import "math/cmplx"

// AGC scales samples towards reference magnitude.
type AGC struct {
	rate      float64
	reference float64
	gain      float64
	maxGain   float64
}

// Process applies gain sample by sample, adjusting it after each one.
func (a *AGC) Process(in []complex64) ([]complex64, error) {
	out := make([]complex64, len(in))
	for i, s := range in {
		o := complex128(s) * complex(a.gain, 0)
		out[i] = complex64(o)
		a.gain += a.rate * (a.reference - cmplx.Abs(o))
		if a.maxGain > 0 && a.gain > a.maxGain {
			a.gain = a.maxGain
		}
	}
	return out, nil
}

// Gain returns current gain.
func (a *AGC) Gain() float64 {
	return a.gain
}
