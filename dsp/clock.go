package dsp

import "math"

// ClockRecovery is a Mueller and Muller timing loop with linear
// interpolation. Unconsumed samples are carried to the next batch.
type ClockRecovery struct {
	omega     float64
	omegaMid  float64
	omegaLim  float64
	relLimit  float64
	gainOmega float64
	mu        float64
	gainMu    float64

	p0, p1, p2 complex128
	c0, c1, c2 complex128
	pending    []complex64
	skip       int // samples to drop from the next batch.
}

// SetOmega sets nominal samples per symbol.
func (r *ClockRecovery) SetOmega(omega float64) {
	r.omega = omega
	r.omegaMid = omega
	r.omegaLim = omega * r.relLimit
}

// SetGainOmega sets gain of the omega update.
func (r *ClockRecovery) SetGainOmega(gain float64) {
	r.gainOmega = gain
}

// SetGainMu sets gain of the mu update.
func (r *ClockRecovery) SetGainMu(gain float64) {
	r.gainMu = gain
}

// Process returns recovered symbols.
func (r *ClockRecovery) Process(in []complex64) ([]complex64, error) {
	buf := append(r.pending, in...)
	if r.skip > 0 {
		n := r.skip
		if n > len(buf) {
			n = len(buf)
		}
		buf = buf[n:]
		r.skip -= n
	}
	out := make([]complex64, 0, int(float64(len(buf))/r.omegaMid)+1)
	i := 0
	for i+1 < len(buf) {
		r.p2, r.p1 = r.p1, r.p0
		r.p0 = complex128(buf[i]) + complex(r.mu, 0)*(complex128(buf[i+1])-complex128(buf[i]))
		r.c2, r.c1 = r.c1, r.c0
		r.c0 = slice(r.p0)

		x := (r.c0 - r.c2) * conj(r.p1)
		y := (r.p0 - r.p2) * conj(r.c1)
		e := clip(real(y-x), 1)
		out = append(out, complex64(r.p0))

		r.omega += r.gainOmega * e
		r.omega = r.omegaMid + clip(r.omega-r.omegaMid, r.omegaLim)
		r.mu += r.omega + r.gainMu*e
		step := math.Floor(r.mu)
		if step < 1 {
			// always advance at least one sample.
			step = 1
		}
		i += int(step)
		r.mu = math.Max(r.mu-step, 0)
	}
	if i > len(buf) {
		r.skip = i - len(buf)
		i = len(buf)
	}
	r.pending = append(r.pending[:0:0], buf[i:]...)
	return out, nil
}

// Omega returns current samples per symbol estimate.
func (r *ClockRecovery) Omega() float64 {
	return r.omega
}

func slice(s complex128) complex128 {
	return complex(sign(real(s)), sign(imag(s)))
}

func conj(s complex128) complex128 {
	return complex(real(s), -imag(s))
}
