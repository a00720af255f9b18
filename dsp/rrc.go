package dsp

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// RRCTaps is the length of root raised cosine filters designed for the
// receiver.
const RRCTaps = 361

// ErrInvalidDesign is returned when filter parameters can't produce taps.
var ErrInvalidDesign = errors.New("invalid filter design parameters")

// RootRaisedCosine designs a root raised cosine filter. Taps are normalized
// so their sum equals gain. Even ntaps is rounded up to odd.
func RootRaisedCosine(gain, sampleRate, symbolRate, alpha float64, ntaps int) ([]float64, error) {
	if ntaps < 1 || sampleRate <= 0 || symbolRate <= 0 || alpha < 0 || alpha > 1 {
		return nil, ErrInvalidDesign
	}
	ntaps |= 1
	sps := sampleRate / symbolRate
	taps := make([]float64, ntaps)
	for i := range taps {
		t := float64(i-ntaps/2) / sps
		taps[i] = rrcAt(t, alpha)
	}
	sum := floats.Sum(taps)
	if sum == 0 {
		return nil, ErrInvalidDesign
	}
	floats.Scale(gain/sum, taps)
	return taps, nil
}

// rrcAt is the root raised cosine impulse response at t symbol periods.
func rrcAt(t, alpha float64) float64 {
	switch {
	case t == 0:
		return 1 - alpha + 4*alpha/math.Pi
	case alpha == 0:
		return math.Sin(math.Pi*t) / (math.Pi * t)
	case math.Abs(math.Abs(4*alpha*t)-1) < 1e-9:
		return alpha / math.Sqrt2 * ((1+2/math.Pi)*math.Sin(math.Pi/(4*alpha)) +
			(1-2/math.Pi)*math.Cos(math.Pi/(4*alpha)))
	}
	x := 4 * alpha * t
	num := math.Sin(math.Pi*t*(1-alpha)) + x*math.Cos(math.Pi*t*(1+alpha))
	return num / (math.Pi * t * (1 - x*x))
}
