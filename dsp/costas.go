package dsp

import (
	"math"
	"math/cmplx"
)

// Costas is a carrier recovery loop for BPSK, QPSK and 8PSK.
type Costas struct {
	order int
	alpha float64
	beta  float64
	phase float64
	freq  float64
}

// SetAlpha sets proportional gain of the loop. Integral gain follows as
// alpha²/4, critically damped.
func (c *Costas) SetAlpha(alpha float64) {
	c.alpha = alpha
	c.beta = alpha * alpha / 4
}

// Process derotates the batch.
func (c *Costas) Process(in []complex64) ([]complex64, error) {
	out := make([]complex64, len(in))
	for i, s := range in {
		o := complex128(s) * cmplx.Exp(complex(0, -c.phase))
		out[i] = complex64(o)

		e := clip(c.detect(o), 1)
		c.freq = clip(c.freq+c.beta*e, 1)
		c.phase = math.Remainder(c.phase+c.freq+c.alpha*e, 2*math.Pi)
	}
	return out, nil
}

// detect returns phase error for the configured order.
func (c *Costas) detect(s complex128) float64 {
	re, im := real(s), imag(s)
	switch c.order {
	case 2:
		return re * im
	case 4:
		return sign(re)*im - sign(im)*re
	default:
		k := math.Sqrt2 - 1
		if math.Abs(re) >= math.Abs(im) {
			return sign(re)*im - k*sign(im)*re
		}
		return k*sign(re)*im - sign(im)*re
	}
}

// Frequency returns tracked frequency offset in radians per sample.
func (c *Costas) Frequency() float64 {
	return c.freq
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
