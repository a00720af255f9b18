// Package signal provides an API to manipulate complex baseband signals. It allows to:
// 	- convert complex samples to interleaved I/Q data and back
//	- convert bit depth for int signals
//	- encode samples into the byte layout used by recording and network sinks
package signal

import (
	"encoding/binary"
	"math"
	"time"
)

// Complex is a buffer of complex baseband samples.
type Complex []complex64

// BytesPerSample is the size of one encoded complex sample: float32 I followed by float32 Q.
const BytesPerSample = 8

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// InterInt is an interleaved int signal, I and Q alternate.
type InterInt struct {
	Data []int
	BitDepth
}

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// devider is used when int to float conversion is done.
func (bitDepth BitDepth) devider() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float to int conversion is done.
func (bitDepth BitDepth) multiplier() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8 - 1
	case BitDepth16:
		return math.MaxInt16 - 1
	case BitDepth32:
		return math.MaxInt32 - 1
	default:
		return 1
	}
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate float64, samples int64) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / sampleRate * float64(time.Second))
}

// AsComplex converts interleaved int signal to complex samples.
// Trailing unpaired value is ignored.
func (ints InterInt) AsComplex() Complex {
	if len(ints.Data) < 2 {
		return nil
	}
	devider := float32(ints.BitDepth.devider())
	samples := make([]complex64, len(ints.Data)/2)
	for i := range samples {
		samples[i] = complex(float32(ints.Data[2*i])/devider, float32(ints.Data[2*i+1])/devider)
	}
	return samples
}

// AsInterInt converts complex samples to interleaved int. Values outside
// [-1, 1] are clipped.
func (c Complex) AsInterInt(bitDepth BitDepth) []int {
	if len(c) == 0 {
		return nil
	}
	multiplier := float64(bitDepth.multiplier())
	ints := make([]int, 2*len(c))
	for i, s := range c {
		ints[2*i] = int(clip(float64(real(s))) * multiplier)
		ints[2*i+1] = int(clip(float64(imag(s))) * multiplier)
	}
	return ints
}

// Interleave writes I and Q values of samples into dst and returns it.
// dst is grown if it is too short.
func (c Complex) Interleave(dst []float32) []float32 {
	if cap(dst) < 2*len(c) {
		dst = make([]float32, 2*len(c))
	}
	dst = dst[:2*len(c)]
	for i, s := range c {
		dst[2*i] = real(s)
		dst[2*i+1] = imag(s)
	}
	return dst
}

// Deinterleave converts interleaved I/Q floats into samples. Trailing
// unpaired value is ignored.
func Deinterleave(floats []float32) Complex {
	samples := make([]complex64, len(floats)/2)
	for i := range samples {
		samples[i] = complex(floats[2*i], floats[2*i+1])
	}
	return samples
}

// Encode writes samples as little-endian float32 I/Q pairs into dst and
// returns it. dst is grown if it is too short.
func (c Complex) Encode(dst []byte) []byte {
	size := BytesPerSample * len(c)
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]
	for i, s := range c {
		binary.LittleEndian.PutUint32(dst[i*BytesPerSample:], math.Float32bits(real(s)))
		binary.LittleEndian.PutUint32(dst[i*BytesPerSample+4:], math.Float32bits(imag(s)))
	}
	return dst
}

// Decode reads little-endian float32 I/Q pairs from src into dst and returns
// number of decoded samples. Partial trailing sample is ignored.
func Decode(dst []complex64, src []byte) int {
	n := len(src) / BytesPerSample
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		re := math.Float32frombits(binary.LittleEndian.Uint32(src[i*BytesPerSample:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(src[i*BytesPerSample+4:]))
		dst[i] = complex(re, im)
	}
	return n
}

// Slice creates a new copy of buffer from start position with defined length.
//
// if start >= buffer size, nil is returned
// if start + len >= buffer size, len is decreased till the end of slice
// if start < 0, nil is returned
func (c Complex) Slice(start int, len int) Complex {
	if c == nil || start >= c.Size() || start < 0 {
		return nil
	}
	end := start + len
	if end > c.Size() {
		end = c.Size()
	}
	return append(Complex(nil), c[start:end]...)
}

// Size returns number of samples in the buffer.
func (c Complex) Size() int {
	return len(c)
}

func clip(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
