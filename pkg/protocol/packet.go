package protocol

import (
	"bytes"
	"io"
)

// Connection states, per the Handshaking -> Status/Login -> Play machine.
const (
	StateHandshaking = 0
	StateStatus      = 1
	StateLogin       = 2
	StatePlay        = 3
)

// ProtocolVersion is the Minecraft protocol revision this codec targets
// (1.19.4). Packet identifiers in ids.go are bit-exact against this
// revision; changing it without updating ids.go breaks clients.
const ProtocolVersion = 762

// Packet is a decoded protocol packet: an identifier and its raw payload.
type Packet struct {
	ID   int32
	Data []byte
}

// ReadPacket reads one frame from r with no compression and returns the
// decoded packet.
func ReadPacket(r io.Reader) (*Packet, error) {
	return ReadFrame(r, 0)
}

// WritePacket writes p to w with no compression.
func WritePacket(w io.Writer, p *Packet) error {
	return WriteFrame(w, p, 0)
}

// MarshalPacket builds a Packet from an id and a builder callback that
// writes the payload into a scratch buffer.
func MarshalPacket(id int32, builder func(w *bytes.Buffer)) *Packet {
	var buf bytes.Buffer
	builder(&buf)
	return &Packet{ID: id, Data: buf.Bytes()}
}

// Reader wraps a packet's payload for sequential decoding.
func (p *Packet) Reader() *bytes.Reader {
	return bytes.NewReader(p.Data)
}
