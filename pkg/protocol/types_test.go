package protocol

import (
	"bytes"
	"testing"
)

func TestVarInt(t *testing.T) {
	tests := []struct {
		value    int32
		expected []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xFF, 0x01}},
		{25565, []byte{0xDD, 0xC7, 0x01}},
		{2097151, []byte{0xFF, 0xFF, 0x7F}},
		{2147483647, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x07}},
		{-1, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
		{-2147483648, []byte{0x80, 0x80, 0x80, 0x80, 0x08}},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			var buf bytes.Buffer
			if _, err := WriteVarInt(&buf, tt.value); err != nil {
				t.Fatalf("WriteVarInt(%d) error: %v", tt.value, err)
			}
			if !bytes.Equal(buf.Bytes(), tt.expected) {
				t.Errorf("WriteVarInt(%d) = %v, want %v", tt.value, buf.Bytes(), tt.expected)
			}

			r := bytes.NewReader(tt.expected)
			val, n, err := ReadVarInt(r)
			if err != nil {
				t.Fatalf("ReadVarInt error: %v", err)
			}
			if val != tt.value {
				t.Errorf("ReadVarInt = %d, want %d", val, tt.value)
			}
			if n != len(tt.expected) {
				t.Errorf("ReadVarInt bytes read = %d, want %d", n, len(tt.expected))
			}
			if got := VarIntSize(tt.value); got != len(tt.expected) {
				t.Errorf("VarIntSize(%d) = %d, want %d", tt.value, got, len(tt.expected))
			}
		})
	}
}

func TestVarIntTooBig(t *testing.T) {
	// Six continuation bytes is never a valid VarInt.
	r := bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	if _, _, err := ReadVarInt(r); err == nil {
		t.Fatal("ReadVarInt accepted a 6-byte sequence")
	}
}

func TestVarLongRoundTrip(t *testing.T) {
	tests := []int64{0, 1, -1, 9223372036854775807, -9223372036854775808, 25565}

	for _, v := range tests {
		var buf bytes.Buffer
		if _, err := WriteVarLong(&buf, v); err != nil {
			t.Fatalf("WriteVarLong(%d) error: %v", v, err)
		}
		r := bytes.NewReader(buf.Bytes())
		got, n, err := ReadVarLong(r)
		if err != nil {
			t.Fatalf("ReadVarLong error: %v", err)
		}
		if got != v {
			t.Errorf("ReadVarLong = %d, want %d", got, v)
		}
		if n < 1 || n > 10 {
			t.Errorf("VarLong length %d out of [1,10]", n)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	tests := []string{
		"",
		"Hello",
		"Hello, World!",
		"日本語テスト",
	}

	for _, s := range tests {
		var buf bytes.Buffer
		if err := WriteString(&buf, s); err != nil {
			t.Fatalf("WriteString(%q) error: %v", s, err)
		}

		r := bytes.NewReader(buf.Bytes())
		got, err := ReadString(r, 32767)
		if err != nil {
			t.Fatalf("ReadString error: %v", err)
		}
		if got != s {
			t.Errorf("ReadString = %q, want %q", got, s)
		}
	}
}

func TestStringRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	WriteString(&buf, "this string is definitely too long for a tiny budget")

	r := bytes.NewReader(buf.Bytes())
	if _, err := ReadString(r, 4); err == nil {
		t.Fatal("ReadString accepted a string past its maxLen*4 budget")
	}
}

func TestStringRejectsInvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	WriteVarInt(&buf, 2)
	buf.Write([]byte{0xFF, 0xFE})

	r := bytes.NewReader(buf.Bytes())
	if _, err := ReadString(r, 32767); err == nil {
		t.Fatal("ReadString accepted invalid UTF-8")
	}
}

func TestPacketRoundTrip(t *testing.T) {
	original := &Packet{ID: 0x00, Data: []byte("test data")}

	var buf bytes.Buffer
	if err := WritePacket(&buf, original); err != nil {
		t.Fatalf("WritePacket error: %v", err)
	}

	r := bytes.NewReader(buf.Bytes())
	got, err := ReadPacket(r)
	if err != nil {
		t.Fatalf("ReadPacket error: %v", err)
	}

	if got.ID != original.ID {
		t.Errorf("Packet ID = %d, want %d", got.ID, original.ID)
	}
	if !bytes.Equal(got.Data, original.Data) {
		t.Errorf("Packet Data = %v, want %v", got.Data, original.Data)
	}
}

func TestFrameRoundTripCompressed(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 4096)
	original := &Packet{ID: 7, Data: payload}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, original, 256); err != nil {
		t.Fatalf("WriteFrame error: %v", err)
	}

	got, err := ReadFrame(&buf, 256)
	if err != nil {
		t.Fatalf("ReadFrame error: %v", err)
	}
	if got.ID != original.ID || !bytes.Equal(got.Data, original.Data) {
		t.Errorf("frame round trip mismatch")
	}
}

func TestFrameRoundTripBelowThreshold(t *testing.T) {
	original := &Packet{ID: 3, Data: []byte("short")}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, original, 256); err != nil {
		t.Fatalf("WriteFrame error: %v", err)
	}

	got, err := ReadFrame(&buf, 256)
	if err != nil {
		t.Fatalf("ReadFrame error: %v", err)
	}
	if got.ID != original.ID || !bytes.Equal(got.Data, original.Data) {
		t.Errorf("frame round trip mismatch below threshold")
	}
}

func TestFrameNeedsMoreOnShortPrefix(t *testing.T) {
	original := &Packet{ID: 1, Data: []byte("hello world")}
	var full bytes.Buffer
	WriteFrame(&full, original, 0)

	truncated := bytes.NewReader(full.Bytes()[:full.Len()-2])
	if _, err := ReadFrame(truncated, 0); err == nil {
		t.Fatal("ReadFrame succeeded on a truncated frame")
	}
}

func TestInt32RoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 2147483647, -2147483648, 42}
	for _, v := range values {
		var buf bytes.Buffer
		if err := WriteInt32(&buf, v); err != nil {
			t.Fatalf("WriteInt32(%d) error: %v", v, err)
		}
		r := bytes.NewReader(buf.Bytes())
		got, err := ReadInt32(r)
		if err != nil {
			t.Fatalf("ReadInt32 error: %v", err)
		}
		if got != v {
			t.Errorf("ReadInt32 = %d, want %d", got, v)
		}
	}
}

func TestFloat64RoundTrip(t *testing.T) {
	values := []float64{0, 1.5, -1.5, 3.14159265}
	for _, v := range values {
		var buf bytes.Buffer
		if err := WriteFloat64(&buf, v); err != nil {
			t.Fatalf("WriteFloat64(%f) error: %v", v, err)
		}
		r := bytes.NewReader(buf.Bytes())
		got, err := ReadFloat64(r)
		if err != nil {
			t.Fatalf("ReadFloat64 error: %v", err)
		}
		if got != v {
			t.Errorf("ReadFloat64 = %f, want %f", got, v)
		}
	}
}

func TestBoolRoundTrip(t *testing.T) {
	for _, v := range []bool{true, false} {
		var buf bytes.Buffer
		if err := WriteBool(&buf, v); err != nil {
			t.Fatalf("WriteBool(%v) error: %v", v, err)
		}
		r := bytes.NewReader(buf.Bytes())
		got, err := ReadBool(r)
		if err != nil {
			t.Fatalf("ReadBool error: %v", err)
		}
		if got != v {
			t.Errorf("ReadBool = %v, want %v", got, v)
		}
	}
}

func TestPositionRoundTrip(t *testing.T) {
	const (
		maxXZ = 1<<25 - 1
		minXZ = -(1 << 25)
		maxY  = 1<<11 - 1
		minY  = -(1 << 11)
	)
	tests := []struct {
		x, y, z int32
	}{
		{0, 0, 0},
		{8, 64, 8},
		{-1, 0, -1},
		{maxXZ, maxY, maxXZ},
		{minXZ, minY, minXZ},
		{3, 64, 5},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		if err := WritePosition(&buf, tt.x, tt.y, tt.z); err != nil {
			t.Fatalf("WritePosition error: %v", err)
		}
		r := bytes.NewReader(buf.Bytes())
		x, y, z, err := ReadPosition(r)
		if err != nil {
			t.Fatalf("ReadPosition error: %v", err)
		}
		if x != tt.x || y != tt.y || z != tt.z {
			t.Errorf("ReadPosition = (%d, %d, %d), want (%d, %d, %d)", x, y, z, tt.x, tt.y, tt.z)
		}
	}
}

func TestMarshalPacket(t *testing.T) {
	pkt := MarshalPacket(0x01, func(w *bytes.Buffer) {
		WriteString(w, "hello")
	})

	if pkt.ID != 0x01 {
		t.Errorf("Packet ID = %d, want %d", pkt.ID, 0x01)
	}

	s, err := ReadString(pkt.Reader(), 32767)
	if err != nil {
		t.Fatalf("ReadString error: %v", err)
	}
	if s != "hello" {
		t.Errorf("ReadString = %q, want %q", s, "hello")
	}
}
