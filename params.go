package pskrx

import (
	"errors"
	"fmt"

	"github.com/dudk/pskrx/dsp"
)

// Receiver defaults.
const (
	DefaultModulationOrder = 2
	DefaultSymbolRate      = 293883
	DefaultCarrierGain     = 1.99e-3
	DefaultTimingGain      = 3.7e-3
	DefaultRollOff         = 0.5
)

// Fixed block settings.
const (
	agcRate          = 1e-2
	agcReference     = 1.0
	agcGain          = 0.5
	agcMaxGain       = 4000
	timingMu         = 0.5
	timingOmegaLimit = 0.005
)

// Params are tunable parameters of the receiver.
type Params struct {
	ModulationOrder int     `json:"modulation_order"`
	SymbolRate      float64 `json:"symbol_rate"`
	CarrierGain     float64 `json:"carrier_gain"`
	TimingGain      float64 `json:"timing_gain"`
	RollOff         float64 `json:"roll_off"`
	InputRate       float64 `json:"input_rate"`
}

// DefaultParams returns parameters the receiver starts with. Input rate is
// unknown until the controller is configured.
func DefaultParams() Params {
	return Params{
		ModulationOrder: DefaultModulationOrder,
		SymbolRate:      DefaultSymbolRate,
		CarrierGain:     DefaultCarrierGain,
		TimingGain:      DefaultTimingGain,
		RollOff:         DefaultRollOff,
	}
}

// ValidOrder returns true for supported modulation orders: 2, 4 and 8.
func ValidOrder(n int) bool {
	return n == 2 || n == 4 || n == 8
}

// SamplesPerSymbol returns input samples per symbol.
func (p Params) SamplesPerSymbol() float64 {
	if p.SymbolRate <= 0 {
		return 0
	}
	return p.InputRate / p.SymbolRate
}

// TimingGains returns gain-omega and gain-mu of the clock recovery for the
// timing gain.
func (p Params) TimingGains() (gainOmega, gainMu float64) {
	return p.TimingGain * p.TimingGain / 4, p.TimingGain
}

// Taps returns matched filter taps.
func (p Params) Taps() ([]float64, error) {
	return dsp.RootRaisedCosine(1, p.InputRate, p.SymbolRate, p.RollOff, dsp.RRCTaps)
}

// Validate returns error if parameters can't drive the receiver. At least
// one sample per symbol is required.
func (p Params) Validate() error {
	var errs []error
	if !ValidOrder(p.ModulationOrder) {
		errs = append(errs, fmt.Errorf("modulation order %d", p.ModulationOrder))
	}
	if p.SymbolRate <= 0 {
		errs = append(errs, fmt.Errorf("symbol rate %v", p.SymbolRate))
	}
	if p.InputRate <= 0 {
		errs = append(errs, fmt.Errorf("input rate %v", p.InputRate))
	}
	if p.CarrierGain <= 0 {
		errs = append(errs, fmt.Errorf("carrier gain %v", p.CarrierGain))
	}
	if p.TimingGain <= 0 {
		errs = append(errs, fmt.Errorf("timing gain %v", p.TimingGain))
	}
	if p.RollOff < 0 || p.RollOff > 1 {
		errs = append(errs, fmt.Errorf("roll-off %v", p.RollOff))
	}
	if len(errs) == 0 && p.SamplesPerSymbol() < 1 {
		errs = append(errs, fmt.Errorf("%v samples per symbol", p.SamplesPerSymbol()))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, errors.Join(errs...))
	}
	return nil
}
