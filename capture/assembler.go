// Package capture turns captured packets into framed application messages.
package capture

import (
	"encoding/binary"
	"net"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/tcpassembly"

	"github.com/slonegd/otdissect/logger"
)

// flushAge is how long out-of-order data may wait for a missing segment.
const flushAge = 2 * time.Minute

// flushEvery is the number of packets between two flushes of stale data.
const flushEvery = 1000

// Direction of a message relative to the server port of its route.
type Direction uint8

const (
	ToServer Direction = iota
	ToClient
)

func (d Direction) String() string {
	if d == ToClient {
		return "server->client"
	}
	return "client->server"
}

// Transport of a message.
type Transport uint8

const (
	TCP Transport = iota
	UDP
)

func (t Transport) String() string {
	if t == UDP {
		return "udp"
	}
	return "tcp"
}

// Framer finds message boundaries in a byte stream. Extract returns the
// length of the first complete message, or 0 when more bytes are needed.
type Framer interface {
	Detect(data []byte) bool
	Extract(data []byte) (int, error)
}

// Route binds a server port to the framer of its protocol.
type Route struct {
	Name   string
	Port   uint16
	Framer Framer
	// UDP delivers datagrams on the port as whole messages.
	UDP bool
}

// Message is one framed application message.
type Message struct {
	Route     string
	Transport Transport
	// Conn identifies the connection, the same for both directions:
	// client address first, server address second.
	Conn  string
	Dir   Direction
	Frame uint64
	Time  time.Time

	Payload []byte
	// ReportedLength is the on-wire length when the capture cut the
	// message short, otherwise 0.
	ReportedLength int
	// Partial is set for the incomplete tail of a segment when
	// desegmentation is off. A tail cut by the capture also carries
	// ReportedLength.
	Partial bool
}

// Handler consumes framed messages.
type Handler func(Message)

// Option configures an Assembler.
type Option func(*Assembler)

// WithDesegment turns TCP reassembly across segments on or off.
func WithDesegment(enabled bool) Option {
	return func(a *Assembler) {
		a.desegment = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Assembler) {
		a.log = l
	}
}

// Assembler routes packets by port, reassembles TCP streams and frames
// the messages they carry.
type Assembler struct {
	routes    map[uint16]Route
	handler   Handler
	desegment bool
	log       logger.Logger

	assembler *tcpassembly.Assembler
	// frame and seen describe the packet being assembled
	frame   uint64
	seen    time.Time
	packets int
}

// NewAssembler creates an Assembler delivering messages to handler.
func NewAssembler(routes []Route, handler Handler, opts ...Option) *Assembler {
	a := &Assembler{
		routes:    make(map[uint16]Route, len(routes)),
		handler:   handler,
		desegment: true,
		log:       logger.Nop(),
	}
	for _, r := range routes {
		a.routes[r.Port] = r
	}
	for _, opt := range opts {
		opt(a)
	}
	a.assembler = tcpassembly.NewAssembler(tcpassembly.NewStreamPool(&streamFactory{a: a}))
	return a
}

// route returns the route of a port pair and the direction of the packet.
func (a *Assembler) route(src, dst uint16) (Route, Direction, bool) {
	if r, ok := a.routes[dst]; ok {
		return r, ToServer, true
	}
	if r, ok := a.routes[src]; ok {
		return r, ToClient, true
	}
	return Route{}, 0, false
}

// Packet handles one decoded packet with its number in the capture.
func (a *Assembler) Packet(frame uint64, packet gopacket.Packet) {
	a.frame = frame
	a.seen = packet.Metadata().Timestamp

	network := packet.NetworkLayer()
	if network == nil {
		return
	}
	switch t := packet.TransportLayer().(type) {
	case *layers.TCP:
		a.tcp(network.NetworkFlow(), t, packet.Metadata())
	case *layers.UDP:
		a.udp(network.NetworkFlow(), t, packet.Metadata())
	}

	a.packets++
	if a.packets%flushEvery == 0 {
		a.assembler.FlushOlderThan(a.seen.Add(-flushAge))
	}
}

func (a *Assembler) tcp(netFlow gopacket.Flow, tcp *layers.TCP, md *gopacket.PacketMetadata) {
	r, dir, ok := a.route(uint16(tcp.SrcPort), uint16(tcp.DstPort))
	if !ok || r.Framer == nil {
		return
	}
	if a.desegment {
		a.assembler.AssembleWithTimestamp(netFlow, tcp, md.Timestamp)
		return
	}
	if len(tcp.Payload) == 0 {
		return
	}

	msg := a.message(r, TCP, netFlow, uint16(tcp.SrcPort), uint16(tcp.DstPort), dir)
	buf := tcp.Payload
	for len(buf) > 0 {
		n, err := r.Framer.Extract(buf)
		if err != nil {
			a.log.Debug("%s frame %d: %v, %d bytes dropped", r.Name, a.frame, err, len(buf))
			return
		}
		m := msg
		if n == 0 {
			m.Payload = buf
			m.Partial = true
			if md.Length > md.CaptureLength {
				m.ReportedLength = len(buf) + md.Length - md.CaptureLength
			}
			a.handler(m)
			return
		}
		m.Payload = buf[:n]
		a.handler(m)
		buf = buf[n:]
	}
}

func (a *Assembler) udp(netFlow gopacket.Flow, udp *layers.UDP, md *gopacket.PacketMetadata) {
	r, dir, ok := a.route(uint16(udp.SrcPort), uint16(udp.DstPort))
	if !ok || !r.UDP || len(udp.Payload) == 0 {
		return
	}
	msg := a.message(r, UDP, netFlow, uint16(udp.SrcPort), uint16(udp.DstPort), dir)
	msg.Payload = udp.Payload
	if md.Length > md.CaptureLength {
		msg.ReportedLength = len(udp.Payload) + md.Length - md.CaptureLength
	}
	a.handler(msg)
}

func (a *Assembler) message(r Route, tr Transport, netFlow gopacket.Flow, src, dst uint16, dir Direction) Message {
	client := net.JoinHostPort(netFlow.Src().String(), strconv.Itoa(int(src)))
	server := net.JoinHostPort(netFlow.Dst().String(), strconv.Itoa(int(dst)))
	if dir == ToClient {
		client, server = server, client
	}
	return Message{
		Route:     r.Name,
		Transport: tr,
		Conn:      client + "-" + server,
		Dir:       dir,
		Frame:     a.frame,
		Time:      a.seen,
	}
}

// Flush delivers everything still buffered and closes all streams.
func (a *Assembler) Flush() {
	a.assembler.FlushAll()
}

// streamFactory implements tcpassembly.StreamFactory
type streamFactory struct {
	a *Assembler
}

func (f *streamFactory) New(netFlow, tcpFlow gopacket.Flow) tcpassembly.Stream {
	src := binary.BigEndian.Uint16(tcpFlow.Src().Raw())
	dst := binary.BigEndian.Uint16(tcpFlow.Dst().Raw())
	r, dir, _ := f.a.route(src, dst)
	s := &stream{
		a:     f.a,
		route: r,
		msg:   f.a.message(r, TCP, netFlow, src, dst, dir),
	}
	f.a.log.Debug("%s stream %s %s opened", r.Name, s.msg.Conn, dir)
	return s
}

// stream implements tcpassembly.Stream for one direction of a connection
type stream struct {
	a     *Assembler
	route Route
	// msg is the template of the messages of this stream
	msg    Message
	buffer []byte
	// lost is set after a gap until the stream resynchronizes
	lost bool
}

func (s *stream) Reassembled(reassembled []tcpassembly.Reassembly) {
	for _, r := range reassembled {
		if r.Skip != 0 {
			if len(s.buffer) > 0 {
				s.a.log.Debug("%s stream %s: gap, %d buffered bytes dropped", s.route.Name, s.msg.Conn, len(s.buffer))
			}
			s.buffer = s.buffer[:0]
			s.lost = true
		}
		if len(r.Bytes) == 0 {
			continue
		}
		if s.lost {
			if !s.route.Framer.Detect(r.Bytes) {
				continue
			}
			s.lost = false
		}
		s.buffer = append(s.buffer, r.Bytes...)
		s.extract(r.Seen)
	}
}

func (s *stream) extract(seen time.Time) {
	consumed := 0
	for consumed < len(s.buffer) {
		n, err := s.route.Framer.Extract(s.buffer[consumed:])
		if err != nil {
			s.a.log.Debug("%s stream %s: %v, %d bytes dropped", s.route.Name, s.msg.Conn, err, len(s.buffer)-consumed)
			consumed = len(s.buffer)
			s.lost = true
			break
		}
		if n == 0 {
			break
		}
		m := s.msg
		m.Frame = s.a.frame
		m.Time = seen
		m.Payload = append([]byte(nil), s.buffer[consumed:consumed+n]...)
		s.a.handler(m)
		consumed += n
	}
	s.buffer = append(s.buffer[:0], s.buffer[consumed:]...)
}

func (s *stream) ReassemblyComplete() {
	if len(s.buffer) > 0 {
		s.a.log.Debug("%s stream %s closed with %d unframed bytes", s.route.Name, s.msg.Conn, len(s.buffer))
	}
	s.buffer = nil
}
