package dsp

// FIR is a complex-input filter with real taps. The delay line is carried
// across batches.
type FIR struct {
	taps    []float64
	history []complex64
	scratch []complex64
}

// SetTaps replaces taps. Delay line is kept where lengths allow.
func (f *FIR) SetTaps(taps []float64) {
	f.taps = append(f.taps[:0], taps...)
	keep := len(taps) - 1
	switch {
	case len(f.history) > keep:
		f.history = f.history[len(f.history)-keep:]
	case len(f.history) < keep:
		f.history = append(make([]complex64, keep-len(f.history)), f.history...)
	}
}

// Process filters the batch. Output has the same length as input.
func (f *FIR) Process(in []complex64) ([]complex64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	f.scratch = append(append(f.scratch[:0], f.history...), in...)
	out := make([]complex64, len(in))
	n := len(f.taps)
	for i := range out {
		var re, im float64
		// newest sample meets the first tap.
		window := f.scratch[i : i+n]
		for k, tap := range f.taps {
			s := window[n-1-k]
			re += tap * float64(real(s))
			im += tap * float64(imag(s))
		}
		out[i] = complex(float32(re), float32(im))
	}
	f.history = append(f.history[:0], f.scratch[len(f.scratch)-(n-1):]...)
	return out, nil
}
