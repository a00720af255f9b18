package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/dudk/pskrx/metric"
	"github.com/dudk/pskrx/signal"
	"github.com/dudk/pskrx/wav"
)

// Format of a recording.
type Format int

// Recording formats.
const (
	Raw Format = iota
	Wav
	Zstd
)

// FormatOf picks recording format from file extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return Wav
	case ".zst":
		return Zstd
	}
	return Raw
}

func (f Format) String() string {
	switch f {
	case Wav:
		return "wav"
	case Zstd:
		return "zstd"
	}
	return "raw"
}

// Recorder writes symbols to a file.
type Recorder struct {
	path   string
	format Format
	file   *os.File
	w      *bufio.Writer
	zw     *zstd.Encoder
	wav    *wav.Sink
	buf    []byte
	metric *metric.Metric
}

// NewRecorder creates the file. Format is taken from the extension: wav
// files hold 16 bit IQ at the rate set by WithSampleRate, zst files hold
// compressed raw symbols, anything else is raw.
func NewRecorder(path string, opts ...Option) (*Recorder, error) {
	o := newOptions(opts)
	r := &Recorder{
		path:   path,
		format: FormatOf(path),
		metric: o.metric,
	}
	if r.format == Wav {
		s, err := wav.NewSink(path, o.sampleRate, signal.BitDepth16)
		if err != nil {
			return nil, fmt.Errorf("recorder %v: %w", path, err)
		}
		r.wav = s
		return r, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recorder %v: %w", path, err)
	}
	r.file = f
	r.w = bufio.NewWriter(f)
	if r.format == Zstd {
		r.zw, err = zstd.NewWriter(r.w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("recorder %v: %w", path, err)
		}
	}
	return r, nil
}

// Path returns path of the recording.
func (r *Recorder) Path() string {
	return r.path
}

// Format returns format of the recording.
func (r *Recorder) Format() Format {
	return r.format
}

// Process writes symbols. It's a terminal stage and returns no output.
func (r *Recorder) Process(in []complex64) ([]complex64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	if r.wav != nil {
		if err := r.wav.Write(in); err != nil {
			r.metric.SinkError(Record)
			return nil, err
		}
		r.metric.SinkWrite(Record, len(in)*2*2)
		return nil, nil
	}

	r.buf = signal.Complex(in).Encode(r.buf)
	var w io.Writer = r.w
	if r.zw != nil {
		w = r.zw
	}
	n, err := w.Write(r.buf)
	r.metric.SinkWrite(Record, n)
	if err != nil {
		r.metric.SinkError(Record)
		return nil, err
	}
	return nil, nil
}

// Close flushes the recording and closes the file.
func (r *Recorder) Close() error {
	if r.wav != nil {
		return r.wav.Close()
	}
	var err error
	if r.zw != nil {
		err = r.zw.Close()
	}
	if ferr := r.w.Flush(); err == nil {
		err = ferr
	}
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}
