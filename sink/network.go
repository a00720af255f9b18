package sink

import (
	"fmt"
	"math/rand"
	"net"
	"strconv"

	"github.com/pion/rtp"
	"golang.org/x/net/ipv4"

	"github.com/dudk/pskrx/log"
	"github.com/dudk/pskrx/metric"
	"github.com/dudk/pskrx/signal"
)

// rtpHeaderSize is the size of an RTP header without extensions.
const rtpHeaderSize = 12

// UDP streams symbols as datagrams. Write failures are counted and the
// datagram is dropped.
type UDP struct {
	conn   *net.UDPConn
	addr   string
	chunk  int // samples per datagram.
	buf    []byte
	metric *metric.Metric
	logger log.Logger

	rtp    bool
	packet rtp.Packet
	seq    rtp.Sequencer
	out    []byte
}

// NewNetwork dials the destination. Multicast destinations get TTL set
// and loopback enabled so local listeners receive the stream.
func NewNetwork(host string, port int, opts ...Option) (*UDP, error) {
	o := newOptions(opts)
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("network sink %v: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("network sink %v: %w", addr, err)
	}
	if raddr.IP.IsMulticast() && raddr.IP.To4() != nil {
		p := ipv4.NewPacketConn(conn)
		if err := p.SetMulticastTTL(o.ttl); err != nil {
			o.logger.Warn(fmt.Sprintf("network sink %v: failed to set multicast ttl: %v", addr, err))
		}
		if err := p.SetMulticastLoopback(true); err != nil {
			o.logger.Warn(fmt.Sprintf("network sink %v: failed to enable multicast loopback: %v", addr, err))
		}
	}

	u := &UDP{
		conn:   conn,
		addr:   addr,
		chunk:  MaxDatagram / signal.BytesPerSample,
		metric: o.metric,
		logger: o.logger,
	}
	if o.rtp {
		u.rtp = true
		u.chunk = (MaxDatagram - rtpHeaderSize) / signal.BytesPerSample
		u.seq = rtp.NewRandomSequencer()
		u.packet.Header = rtp.Header{
			Version:     2,
			PayloadType: o.payloadType,
			SSRC:        rand.Uint32(),
			Timestamp:   rand.Uint32(),
		}
	}
	return u, nil
}

// Addr returns destination address.
func (u *UDP) Addr() string {
	return u.addr
}

// Process sends symbols split into datagrams. It never fails.
func (u *UDP) Process(in []complex64) ([]complex64, error) {
	for len(in) > 0 {
		n := u.chunk
		if n > len(in) {
			n = len(in)
		}
		u.send(in[:n])
		in = in[n:]
	}
	return nil, nil
}

func (u *UDP) send(samples []complex64) {
	u.buf = signal.Complex(samples).Encode(u.buf)
	datagram := u.buf
	if u.rtp {
		u.packet.SequenceNumber = u.seq.NextSequenceNumber()
		u.packet.Payload = u.buf
		var err error
		if u.out, err = u.packet.Marshal(); err != nil {
			u.metric.SinkError(Network)
			return
		}
		u.packet.Timestamp += uint32(len(samples))
		datagram = u.out
	}
	n, err := u.conn.Write(datagram)
	if err != nil {
		u.metric.SinkError(Network)
		u.logger.Debug(fmt.Sprintf("network sink %v: dropped datagram: %v", u.addr, err))
		return
	}
	u.metric.SinkWrite(Network, n)
}

// Close closes the socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}
