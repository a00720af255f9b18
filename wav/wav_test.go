package wav_test

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/pskrx/signal"
	"github.com/dudk/pskrx/wav"
)

func TestWavRoundTrip(t *testing.T) {
	tests := []struct {
		bitDepth   signal.BitDepth
		bufferSize int
		delta      float64
	}{
		{bitDepth: signal.BitDepth16, bufferSize: 7, delta: 1e-4},
		{bitDepth: signal.BitDepth32, bufferSize: 512, delta: 1e-6},
	}
	samples := []complex64{complex(0.5, -0.5), complex(1, 0), complex(-0.25, 0.75)}
	for _, test := range tests {
		path := filepath.Join(t.TempDir(), "iq.wav")
		sink, err := wav.NewSink(path, 62500, test.bitDepth)
		require.Nil(t, err)
		for i := 0; i < 10; i++ {
			assert.Nil(t, sink.Write(samples))
		}
		assert.Nil(t, sink.Write(nil))
		require.Nil(t, sink.Close())

		pump, err := wav.NewPump(path)
		require.Nil(t, err)
		assert.Equal(t, 62500, pump.SampleRate())
		buf := make([]complex64, test.bufferSize)
		var read []complex64
		for {
			n, err := pump.Pump(buf)
			if err == io.EOF {
				break
			}
			require.Nil(t, err)
			read = append(read, buf[:n]...)
		}
		assert.Nil(t, pump.Close())
		require.Equal(t, 10*len(samples), len(read))
		for i, s := range read {
			expected := samples[i%len(samples)]
			assert.InDelta(t, real(expected), real(s), test.delta)
			assert.InDelta(t, imag(expected), imag(s), test.delta)
		}
	}
}

func TestInvalid(t *testing.T) {
	_, err := wav.NewSink(filepath.Join(t.TempDir(), "iq.wav"), 1000, signal.BitDepth8)
	assert.Equal(t, wav.ErrUnsupportedBitDepth, err)

	_, err = wav.NewPump(filepath.Join(t.TempDir(), "missing.wav"))
	assert.NotNil(t, err)
}
