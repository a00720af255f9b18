// Package wav stores complex baseband samples in PCM wav files. I and Q
// are kept in the left and right channels.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/dudk/pskrx/signal"
)

const (
	numChannels = 2
	pcmFormat   = 1
)

type (
	// Pump reads IQ samples from wav file.
	Pump struct {
		file    *os.File
		decoder *wav.Decoder
		ib      *audio.IntBuffer
	}

	// Sink saves IQ samples to wav file.
	Sink struct {
		bitDepth signal.BitDepth
		file     *os.File
		encoder  *wav.Encoder
		ib       *audio.IntBuffer
	}
)

var (
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 16 and 32 bit depth is supported")
	// ErrNotIQ is returned when wav doesn't have exactly two channels.
	ErrNotIQ = errors.New("IQ wav must have two channels")
)

// NewPump opens wav file and validates its format.
func NewPump(path string) (*Pump, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		err = file.Close()
		if err != nil {
			return nil, fmt.Errorf("wav is not valid, failed to close the file %v: %w", path, err)
		}
		return nil, fmt.Errorf("wav %v is not valid", path)
	}
	if err := validate(signal.BitDepth(decoder.BitDepth), int(decoder.NumChans)); err != nil {
		file.Close()
		return nil, err
	}
	return &Pump{
		file:    file,
		decoder: decoder,
		ib: &audio.IntBuffer{
			Format:         decoder.Format(),
			SourceBitDepth: int(decoder.BitDepth),
		},
	}, nil
}

// SampleRate returns sample rate from the wav header.
func (p *Pump) SampleRate() int {
	return int(p.decoder.SampleRate)
}

// Pump reads samples into buf. io.EOF is returned at the end of file.
func (p *Pump) Pump(buf []complex64) (int, error) {
	if cap(p.ib.Data) < numChannels*len(buf) {
		p.ib.Data = make([]int, numChannels*len(buf))
	}
	p.ib.Data = p.ib.Data[:numChannels*len(buf)]
	read, err := p.decoder.PCMBuffer(p.ib)
	if err != nil {
		return 0, err
	}
	if read == 0 {
		return 0, io.EOF
	}
	// prune buffer to actual size
	samples := signal.InterInt{Data: p.ib.Data[:read], BitDepth: signal.BitDepth(p.decoder.BitDepth)}.AsComplex()
	return copy(buf, samples), nil
}

// Close closes the file.
func (p *Pump) Close() error {
	return p.file.Close()
}

// NewSink creates wav file and writes the header.
func NewSink(path string, sampleRate int, bitDepth signal.BitDepth) (*Sink, error) {
	if err := validate(bitDepth, numChannels); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Sink{
		bitDepth: bitDepth,
		file:     f,
		encoder:  wav.NewEncoder(f, sampleRate, int(bitDepth), numChannels, pcmFormat),
		ib: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: numChannels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: int(bitDepth),
		},
	}, nil
}

// Write encodes samples. Values outside [-1, 1] are clipped.
func (s *Sink) Write(samples []complex64) error {
	if len(samples) == 0 {
		return nil
	}
	s.ib.Data = signal.Complex(samples).AsInterInt(s.bitDepth)
	return s.encoder.Write(s.ib)
}

// Close finalizes the header and closes the file.
func (s *Sink) Close() error {
	err := s.encoder.Close()
	if err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func validate(bitDepth signal.BitDepth, channels int) error {
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth32 {
		return ErrUnsupportedBitDepth
	}
	if channels != numChannels {
		return ErrNotIQ
	}
	return nil
}
