package world

import (
	"bytes"
	"fmt"
	"io"

	"github.com/plunkit-dev/plunkit/pkg/protocol"
)

// ChunkHeight is the total vertical extent of a chunk column in blocks,
// matching the 1.19.4 world height this server targets (24 sections).
const ChunkHeight = 384

// SectionsPerChunk is the fixed number of 16-block-tall sections in a chunk.
const SectionsPerChunk = ChunkHeight / 16

const sectionVolume = 16 * 16 * 16
const nibbleArrayLen = sectionVolume / 2

// Flat-generator block identifiers.
const (
	blockAir    = 0
	blockGrass  = 2
	blockDirt   = 3
	blockBedrock = 7
)

// Section is a 16x16x16 volume of blocks plus packed 4-bit light arrays.
type Section struct {
	Blocks     [sectionVolume]uint16
	BlockLight [nibbleArrayLen]byte
	SkyLight   [nibbleArrayLen]byte
}

// IsEmpty reports whether every block in the section is air.
func (s *Section) IsEmpty() bool {
	for _, b := range s.Blocks {
		if b != 0 {
			return false
		}
	}
	return true
}

// blockIndex returns the dense (y,z,x)-ordered index of a cell within a
// section, for local coordinates in [0,16).
func blockIndex(lx, ly, lz int32) int {
	return int((ly*16+lz)*16 + lx)
}

func getNibble(arr []byte, idx int) byte {
	b := arr[idx/2]
	if idx%2 == 0 {
		return b & 0x0F
	}
	return (b >> 4) & 0x0F
}

func setNibble(arr []byte, idx int, v byte) {
	v &= 0x0F
	if idx%2 == 0 {
		arr[idx/2] = (arr[idx/2] & 0xF0) | v
	} else {
		arr[idx/2] = (arr[idx/2] & 0x0F) | (v << 4)
	}
}

// Chunk owns a fixed sequence of sections plus a heightmap and biome map.
type Chunk struct {
	Sections  [SectionsPerChunk]*Section
	Heightmap [16][16]int32
	Biomes    [16][16]int32
}

// NewChunk returns an empty chunk: all sections nil (treated as empty),
// zero heightmap, biome 0 everywhere.
func NewChunk() *Chunk {
	return &Chunk{}
}

func (c *Chunk) sectionIndex(y int32) int {
	return int(y) / 16
}

// GetBlock returns the block id at local column (x,z) and world y, or 0
// (air) if y is outside [0, ChunkHeight) or the section is empty.
func (c *Chunk) GetBlock(x, y, z int32) uint16 {
	if y < 0 || y >= ChunkHeight {
		return 0
	}
	sec := c.Sections[c.sectionIndex(y)]
	if sec == nil {
		return 0
	}
	return sec.Blocks[blockIndex(x&15, y&15, z&15)]
}

// SetBlock sets the block id at local column (x,z) and world y, allocating
// the section on demand, and refreshes the heightmap column.
func (c *Chunk) SetBlock(x, y, z int32, id uint16) {
	if y < 0 || y >= ChunkHeight {
		return
	}
	idx := c.sectionIndex(y)
	sec := c.Sections[idx]
	if sec == nil {
		if id == 0 {
			return
		}
		sec = &Section{}
		c.Sections[idx] = sec
	}
	sec.Blocks[blockIndex(x&15, y&15, z&15)] = id
	c.recomputeHeightmapColumn(x, z)
}

// recomputeHeightmapColumn rescans column (x,z) top-to-bottom and sets
// Heightmap[x][z] to the highest y with a non-air block, or 0 if empty.
func (c *Chunk) recomputeHeightmapColumn(x, z int32) {
	for y := int32(ChunkHeight - 1); y >= 0; y-- {
		if c.GetBlock(x, y, z) != 0 {
			c.Heightmap[x&15][z&15] = y
			return
		}
	}
	c.Heightmap[x&15][z&15] = 0
}

// GenerateFlat builds a flat-world chunk: bedrock at y=0, dirt from y=1 up
// to groundHeight-2, grass at groundHeight-1, air above. The heightmap is
// set to groundHeight for every column per the flat-generator spec.
func GenerateFlat(groundHeight int32) *Chunk {
	c := NewChunk()
	for y := int32(0); y < groundHeight; y++ {
		id := uint16(blockDirt)
		switch {
		case y == 0:
			id = blockBedrock
		case y == groundHeight-1:
			id = blockGrass
		}
		fillLayer(c, y, id)
	}
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			c.Heightmap[x][z] = groundHeight
		}
	}
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			c.Biomes[x][z] = 1 // plains
		}
	}
	return c
}

func fillLayer(c *Chunk, y int32, id uint16) {
	idx := c.sectionIndex(y)
	sec := c.Sections[idx]
	if sec == nil {
		sec = &Section{}
		c.Sections[idx] = sec
	}
	for x := int32(0); x < 16; x++ {
		for z := int32(0); z < 16; z++ {
			sec.Blocks[blockIndex(x, y&15, z)] = id
			setNibble(sec.SkyLight[:], blockIndex(x, y&15, z), 0x0F)
		}
	}
}

// nonAirCount returns the number of non-zero blocks in a section.
func nonAirCount(sec *Section) uint16 {
	var n uint16
	for _, b := range sec.Blocks {
		if b != 0 {
			n++
		}
	}
	return n
}

// Encode serializes the chunk per the wire format: heightmap, then one
// marker byte per section (optionally followed by its payload), then the
// biome map. All scalar fields are big-endian.
func (c *Chunk) Encode() []byte {
	var buf bytes.Buffer
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			protocol.WriteInt32(&buf, c.Heightmap[x][z])
		}
	}
	for _, sec := range c.Sections {
		if sec == nil || sec.IsEmpty() {
			protocol.WriteByte(&buf, 0)
			continue
		}
		protocol.WriteByte(&buf, 1)
		protocol.WriteUint16(&buf, nonAirCount(sec))
		for _, b := range sec.Blocks {
			protocol.WriteUint16(&buf, b)
		}
		buf.Write(sec.BlockLight[:])
		buf.Write(sec.SkyLight[:])
	}
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			protocol.WriteInt32(&buf, c.Biomes[x][z])
		}
	}
	return buf.Bytes()
}

// sectionPayloadSize is the byte size of a present section's payload:
// the non-air count, the dense block array, and the two light arrays.
const sectionPayloadSize = 2 + sectionVolume*2 + nibbleArrayLen*2

// EncodedLen returns the byte length Encode would produce, per the
// chunk-encode/decode length-consistency property.
func (c *Chunk) EncodedLen() int {
	n := 16*16*4 + 16*16*4
	for _, sec := range c.Sections {
		n++
		if sec != nil && !sec.IsEmpty() {
			n += sectionPayloadSize
		}
	}
	return n
}

// Decode parses a chunk from its encoded byte form.
func Decode(data []byte) (*Chunk, error) {
	r := bytes.NewReader(data)
	c := NewChunk()

	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			v, err := protocol.ReadInt32(r)
			if err != nil {
				return nil, fmt.Errorf("world: decode heightmap: %w", err)
			}
			c.Heightmap[x][z] = v
		}
	}

	for i := range c.Sections {
		marker, err := protocol.ReadByte(r)
		if err != nil {
			return nil, fmt.Errorf("world: decode section marker: %w", err)
		}
		if marker == 0 {
			continue
		}
		if _, err := protocol.ReadUint16(r); err != nil { // non-air count, recomputed on demand
			return nil, fmt.Errorf("world: decode non-air count: %w", err)
		}
		sec := &Section{}
		for j := range sec.Blocks {
			b, err := protocol.ReadUint16(r)
			if err != nil {
				return nil, fmt.Errorf("world: decode block array: %w", err)
			}
			sec.Blocks[j] = b
		}
		if _, err := io.ReadFull(r, sec.BlockLight[:]); err != nil {
			return nil, fmt.Errorf("world: decode block light: %w", err)
		}
		if _, err := io.ReadFull(r, sec.SkyLight[:]); err != nil {
			return nil, fmt.Errorf("world: decode sky light: %w", err)
		}
		c.Sections[i] = sec
	}

	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			v, err := protocol.ReadInt32(r)
			if err != nil {
				return nil, fmt.Errorf("world: decode biome: %w", err)
			}
			c.Biomes[x][z] = v
		}
	}

	return c, nil
}
