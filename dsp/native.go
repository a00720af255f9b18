package dsp

import "fmt"

// Native is the reference block library.
type Native struct{}

// NewFilter returns FIR filter with provided taps.
func (Native) NewFilter(taps []float64) (Filter, error) {
	if len(taps) == 0 {
		return nil, fmt.Errorf("filter: %w", ErrInvalidDesign)
	}
	f := &FIR{}
	f.SetTaps(taps)
	return f, nil
}

// NewGainControl returns AGC loop.
func (Native) NewGainControl(rate, reference, gain, maxGain float64) (GainControl, error) {
	if rate <= 0 || reference <= 0 {
		return nil, fmt.Errorf("agc: rate %v and reference %v must be positive", rate, reference)
	}
	return &AGC{rate: rate, reference: reference, gain: gain, maxGain: maxGain}, nil
}

// NewCarrierRecovery returns Costas loop of provided order.
func (Native) NewCarrierRecovery(alpha float64, order int) (CarrierRecovery, error) {
	if order != 2 && order != 4 && order != 8 {
		return nil, fmt.Errorf("costas: unsupported order %d", order)
	}
	c := &Costas{order: order}
	c.SetAlpha(alpha)
	return c, nil
}

// NewTimingRecovery returns Mueller and Muller clock recovery.
func (Native) NewTimingRecovery(omega, gainOmega, mu, gainMu, omegaRelLimit float64) (TimingRecovery, error) {
	if omega < 1 {
		return nil, fmt.Errorf("clock recovery: omega %v is less than one sample", omega)
	}
	return &ClockRecovery{
		omega:     omega,
		omegaMid:  omega,
		omegaLim:  omega * omegaRelLimit,
		relLimit:  omegaRelLimit,
		gainOmega: gainOmega,
		mu:        mu,
		gainMu:    gainMu,
	}, nil
}

// NewLevelMeter returns RMS meter.
func (Native) NewLevelMeter() (LevelMeter, error) {
	return &RMS{}, nil
}
