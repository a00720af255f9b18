package sink_test

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/pskrx/metric"
	"github.com/dudk/pskrx/signal"
	"github.com/dudk/pskrx/sink"
	"github.com/dudk/pskrx/wav"
)

func symbols(n int) []complex64 {
	s := make([]complex64, n)
	for i := range s {
		s[i] = complex(float32(i%7)/8, -float32(i%5)/8)
	}
	return s
}

func sinkBytes(t *testing.T, m *metric.Metric, name string) float64 {
	families, err := m.Registry.Gather()
	require.Nil(t, err)
	for _, f := range families {
		if f.GetName() != "pskrx_sink_bytes_total" {
			continue
		}
		for _, s := range f.GetMetric() {
			for _, l := range s.GetLabel() {
				if l.GetName() == "sink" && l.GetValue() == name {
					return s.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, sink.Wav, sink.FormatOf("/tmp/a.WAV"))
	assert.Equal(t, sink.Zstd, sink.FormatOf("a.cf32.zst"))
	assert.Equal(t, sink.Raw, sink.FormatOf("a.cf32"))
	assert.Equal(t, sink.Raw, sink.FormatOf("noext"))
	assert.Equal(t, "zstd", sink.Zstd.String())
}

func TestRecorderRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.cf32")
	m := metric.New()
	r, err := sink.NewRecorder(path, sink.WithMetric(m))
	require.Nil(t, err)
	assert.Equal(t, path, r.Path())
	in := symbols(100)
	for i := 0; i < 3; i++ {
		out, err := r.Process(in)
		assert.Nil(t, err)
		assert.Nil(t, out)
	}
	require.Nil(t, r.Close())

	data, err := os.ReadFile(path)
	require.Nil(t, err)
	assert.Equal(t, 3*len(in)*signal.BytesPerSample, len(data))
	decoded := make([]complex64, len(in))
	signal.Decode(decoded, data[len(data)-len(in)*signal.BytesPerSample:])
	assert.Equal(t, in, decoded)
	assert.Equal(t, float64(len(data)), sinkBytes(t, m, sink.Record))
}

func TestRecorderZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.zst")
	r, err := sink.NewRecorder(path)
	require.Nil(t, err)
	assert.Equal(t, sink.Zstd, r.Format())
	in := symbols(1000)
	_, err = r.Process(in)
	assert.Nil(t, err)
	require.Nil(t, r.Close())

	f, err := os.Open(path)
	require.Nil(t, err)
	defer f.Close()
	d, err := zstd.NewReader(f)
	require.Nil(t, err)
	defer d.Close()
	data, err := io.ReadAll(d)
	require.Nil(t, err)
	decoded := make([]complex64, len(in))
	assert.Equal(t, len(in), signal.Decode(decoded, data))
	assert.Equal(t, in, decoded)
}

func TestRecorderWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.wav")
	r, err := sink.NewRecorder(path, sink.WithSampleRate(62500))
	require.Nil(t, err)
	in := symbols(64)
	_, err = r.Process(in)
	assert.Nil(t, err)
	require.Nil(t, r.Close())

	p, err := wav.NewPump(path)
	require.Nil(t, err)
	defer p.Close()
	assert.Equal(t, 62500, p.SampleRate())
	buf := make([]complex64, 128)
	n, err := p.Pump(buf)
	require.Nil(t, err)
	assert.Equal(t, len(in), n)
	for i := range in {
		assert.InDelta(t, real(in[i]), real(buf[i]), 1e-4)
		assert.InDelta(t, imag(in[i]), imag(buf[i]), 1e-4)
	}
}

func TestRecorderInvalidPath(t *testing.T) {
	_, err := sink.NewRecorder(filepath.Join(t.TempDir(), "missing", "symbols.cf32"))
	assert.NotNil(t, err)
}

func listen(t *testing.T) (*net.UDPConn, int) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.Nil(t, err)
	return conn, conn.LocalAddr().(*net.UDPAddr).Port
}

func receive(t *testing.T, conn *net.UDPConn, datagrams int) [][]byte {
	var result [][]byte
	buf := make([]byte, 2*sink.MaxDatagram)
	for i := 0; i < datagrams; i++ {
		require.Nil(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, err := conn.Read(buf)
		require.Nil(t, err)
		result = append(result, append([]byte(nil), buf[:n]...))
	}
	return result
}

func TestNetwork(t *testing.T) {
	conn, port := listen(t)
	defer conn.Close()

	m := metric.New()
	u, err := sink.NewNetwork("127.0.0.1", port, sink.WithMetric(m))
	require.Nil(t, err)
	defer u.Close()

	// 184 symbols fit one datagram.
	in := symbols(400)
	out, err := u.Process(in)
	assert.Nil(t, err)
	assert.Nil(t, out)

	datagrams := receive(t, conn, 3)
	assert.Equal(t, sink.MaxDatagram, len(datagrams[0]))
	assert.Equal(t, sink.MaxDatagram, len(datagrams[1]))
	assert.Equal(t, (400-2*184)*signal.BytesPerSample, len(datagrams[2]))

	var received []complex64
	for _, d := range datagrams {
		decoded := make([]complex64, len(d)/signal.BytesPerSample)
		signal.Decode(decoded, d)
		received = append(received, decoded...)
	}
	assert.Equal(t, in, received)
	assert.Equal(t, float64(400*signal.BytesPerSample), sinkBytes(t, m, sink.Network))
}

func TestNetworkRTP(t *testing.T) {
	conn, port := listen(t)
	defer conn.Close()

	u, err := sink.NewNetwork("127.0.0.1", port, sink.WithRTP(96))
	require.Nil(t, err)
	defer u.Close()

	in := symbols(200)
	_, err = u.Process(in)
	assert.Nil(t, err)

	datagrams := receive(t, conn, 2)
	var first, second rtp.Packet
	require.Nil(t, first.Unmarshal(datagrams[0]))
	require.Nil(t, second.Unmarshal(datagrams[1]))
	assert.Equal(t, 12+182*signal.BytesPerSample, len(datagrams[0]))
	assert.Equal(t, uint8(96), first.PayloadType)
	assert.Equal(t, first.SSRC, second.SSRC)
	assert.Equal(t, first.SequenceNumber+1, second.SequenceNumber)
	// timestamps advance by samples in the previous packet.
	chunk := uint32(len(first.Payload) / signal.BytesPerSample)
	assert.Equal(t, uint32(182), chunk)
	assert.Equal(t, first.Timestamp+chunk, second.Timestamp)
	assert.Equal(t, (200-182)*signal.BytesPerSample, len(second.Payload))
}

func TestNetworkInvalidHost(t *testing.T) {
	_, err := sink.NewNetwork("invalid host name", 1234)
	assert.NotNil(t, err)
}
