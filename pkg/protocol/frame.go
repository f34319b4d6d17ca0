package protocol

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// maxFrameLength bounds a frame's declared length to reject hostile input
// before an allocation is attempted.
const maxFrameLength = 2 * 1024 * 1024

// ReadFrame reads one packet frame from r. When threshold > 0 the frame is
// assumed to carry the compressed envelope
// [varint total_length][varint uncompressed_length][zlib(id‖payload)];
// an uncompressed_length of 0 marks an uncompressed frame even when
// compression is negotiated. When threshold <= 0 the frame is
// [varint payload_length][varint packet_id][payload].
func ReadFrame(r io.Reader, threshold int) (*Packet, error) {
	length, _, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if length < 1 || length > maxFrameLength {
		return nil, fmt.Errorf("protocol: frame length out of range: %d", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	br := bytes.NewReader(body)

	if threshold <= 0 {
		return splitIDFromBody(br)
	}

	uncompressedLen, _, err := ReadVarInt(br)
	if err != nil {
		return nil, err
	}
	if uncompressedLen == 0 {
		return splitIDFromBody(br)
	}
	zr, err := zlib.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("protocol: bad zlib frame: %w", err)
	}
	defer zr.Close()
	raw := make([]byte, uncompressedLen)
	if _, err := io.ReadFull(zr, raw); err != nil {
		return nil, err
	}
	return splitIDFromBody(bytes.NewReader(raw))
}

func splitIDFromBody(r *bytes.Reader) (*Packet, error) {
	id, idLen, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	rest := make([]byte, r.Len())
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	_ = idLen
	return &Packet{ID: id, Data: rest}, nil
}

// WriteFrame writes p to w. When threshold > 0 and len(id‖payload) meets
// the threshold, the frame is zlib-compressed; otherwise it carries the
// uncompressed_length = 0 marker (still inside the compressed envelope) so
// readers expecting compression framing can distinguish the two paths.
func WriteFrame(w io.Writer, p *Packet, threshold int) error {
	idSize := VarIntSize(p.ID)
	body := make([]byte, 0, idSize+len(p.Data))
	idBuf := make([]byte, idSize)
	PutVarInt(idBuf, p.ID)
	body = append(body, idBuf...)
	body = append(body, p.Data...)

	if threshold <= 0 {
		return writeLengthPrefixed(w, body)
	}

	if len(body) < threshold {
		var buf bytes.Buffer
		WriteVarInt(&buf, 0)
		buf.Write(body)
		return writeLengthPrefixed(w, buf.Bytes())
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(body); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	var buf bytes.Buffer
	WriteVarInt(&buf, int32(len(body)))
	buf.Write(compressed.Bytes())
	return writeLengthPrefixed(w, buf.Bytes())
}

func writeLengthPrefixed(w io.Writer, body []byte) error {
	var buf bytes.Buffer
	WriteVarInt(&buf, int32(len(body)))
	buf.Write(body)
	_, err := w.Write(buf.Bytes())
	return err
}
