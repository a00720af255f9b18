// Package dsp defines the block library used by the pipeline controller and
// ships a reference implementation of it.
//
// The controller only creates blocks and sets their parameters. Streaming
// and wiring are done by the controller's stage graph, so blocks are plain
// synchronous processors: one call per batch, never concurrent with their
// own setters.
package dsp

import "math"

// Block processes one batch of samples. Implementations must not modify
// the input and may return a batch of different length.
type Block interface {
	Process(in []complex64) ([]complex64, error)
}

// Filter is a FIR filter with real taps.
type Filter interface {
	Block
	SetTaps(taps []float64)
}

// GainControl is an automatic gain control loop.
type GainControl interface {
	Block
}

// CarrierRecovery is a PSK carrier tracking loop.
type CarrierRecovery interface {
	Block
	SetAlpha(alpha float64)
}

// TimingRecovery is a symbol clock recovery loop. It consumes samples and
// produces one output per recovered symbol.
type TimingRecovery interface {
	Block
	SetOmega(omega float64)
	SetGainOmega(gain float64)
	SetGainMu(gain float64)
}

// LevelMeter measures power of the samples it is fed with.
type LevelMeter interface {
	Block
	// Level returns linear RMS level of the last measured batch.
	Level() float64
	// LevelDB returns Level in decibels.
	LevelDB() float64
}

// Library creates blocks.
type Library interface {
	NewFilter(taps []float64) (Filter, error)
	NewGainControl(rate, reference, gain, maxGain float64) (GainControl, error)
	NewCarrierRecovery(alpha float64, order int) (CarrierRecovery, error)
	NewTimingRecovery(omega, gainOmega, mu, gainMu, omegaRelLimit float64) (TimingRecovery, error)
	NewLevelMeter() (LevelMeter, error)
}

// MinLevelDB is reported for silence.
const MinLevelDB = -120.0

// ToDB converts linear amplitude to decibels, floored at MinLevelDB.
func ToDB(level float64) float64 {
	if level <= 0 {
		return MinLevelDB
	}
	db := 20 * math.Log10(level)
	if db < MinLevelDB {
		return MinLevelDB
	}
	return db
}

func clip(v, limit float64) float64 {
	switch {
	case v > limit:
		return limit
	case v < -limit:
		return -limit
	}
	return v
}
