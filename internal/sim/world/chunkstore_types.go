package world

import (
	"crypto/sha256"
	"encoding/binary"
)

const ChunkSize = 16

type ChunkKey struct {
	CX int
	CZ int
}

// Chunk holds a 16x16 footprint of full-height block columns.
type Chunk struct {
	CX, CZ int
	Height int
	Blocks []uint16 // len = 16*16*Height

	dirty bool
	hash  [32]byte
}

func (c *Chunk) index(x, y, z int) int {
	// x fastest, then z, then y
	return x + z*ChunkSize + y*ChunkSize*ChunkSize
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

// Column returns the blocks of one vertical column, bottom to top.
func (c *Chunk) Column(x, z int) []uint16 {
	out := make([]uint16, c.Height)
	for y := 0; y < c.Height; y++ {
		out[y] = c.Blocks[c.index(x, y, z)]
	}
	return out
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

// Gen describes the deterministic terrain of a bounded world. SizeX/SizeZ are
// the horizontal extents in blocks, Height the vertical one; coordinates run
// from 0 inclusive to the extent exclusive.
type Gen struct {
	Seed   int64
	SizeX  int
	SizeZ  int
	Height int

	// Heightmap shaping.
	BaseHeight   int
	Amplitude    int
	NoiseScale   float64
	DirtDepth    int
	SandBelow    int // surface at or below this height becomes sand
	CoalPermille int
	IronPermille int
}

func (g *Gen) applyDefaults() {
	if g.SizeX <= 0 {
		g.SizeX = 256
	}
	if g.SizeZ <= 0 {
		g.SizeZ = 256
	}
	if g.Height <= 0 {
		g.Height = 64
	}
	if g.BaseHeight <= 0 {
		g.BaseHeight = g.Height / 3
	}
	if g.Amplitude <= 0 {
		g.Amplitude = g.Height / 6
	}
	if g.NoiseScale <= 0 {
		g.NoiseScale = 48
	}
	if g.DirtDepth <= 0 {
		g.DirtDepth = 3
	}
	if g.CoalPermille <= 0 {
		g.CoalPermille = 12
	}
	if g.IronPermille <= 0 {
		g.IronPermille = 6
	}
}

// ChunkStore is the voxel grid. Accessed only from the sim loop goroutine.
type ChunkStore struct {
	gen    Gen
	noise  *terrainNoise
	chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen Gen) *ChunkStore {
	gen.applyDefaults()
	return &ChunkStore{
		gen:    gen,
		noise:  newTerrainNoise(gen.Seed),
		chunks: map[ChunkKey]*Chunk{},
	}
}

func (s *ChunkStore) Gen() Gen { return s.gen }
func (s *ChunkStore) SizeX() int { return s.gen.SizeX }
func (s *ChunkStore) SizeZ() int { return s.gen.SizeZ }
func (s *ChunkStore) Height() int { return s.gen.Height }
