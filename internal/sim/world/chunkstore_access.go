package world

import "sort"

func (s *ChunkStore) InBounds(pos Vec3i) bool {
	if pos.X < 0 || pos.X >= s.gen.SizeX {
		return false
	}
	if pos.Z < 0 || pos.Z >= s.gen.SizeZ {
		return false
	}
	if pos.Y < 0 || pos.Y >= s.gen.Height {
		return false
	}
	return true
}

func (s *ChunkStore) GetBlock(pos Vec3i) uint16 {
	if !s.InBounds(pos) {
		return Air
	}
	cx := floorDiv(pos.X, ChunkSize)
	cz := floorDiv(pos.Z, ChunkSize)
	lx := mod(pos.X, ChunkSize)
	lz := mod(pos.Z, ChunkSize)
	return s.getOrGenChunk(cx, cz).Get(lx, pos.Y, lz)
}

func (s *ChunkStore) SetBlock(pos Vec3i, b uint16) {
	if !s.InBounds(pos) {
		return
	}
	cx := floorDiv(pos.X, ChunkSize)
	cz := floorDiv(pos.Z, ChunkSize)
	lx := mod(pos.X, ChunkSize)
	lz := mod(pos.Z, ChunkSize)
	s.getOrGenChunk(cx, cz).Set(lx, pos.Y, lz, b)
}

// IsSolid is bounds-checked; everything outside the world reads as empty.
func (s *ChunkStore) IsSolid(pos Vec3i) bool {
	if !s.InBounds(pos) {
		return false
	}
	return BlockSolid(s.GetBlock(pos))
}

func (s *ChunkStore) IsStair(pos Vec3i) bool {
	return s.InBounds(pos) && s.GetBlock(pos) == Stairs
}

// SurfaceY returns the y of the lowest non-solid cell above the terrain at
// (x,z), i.e. where an agent standing on the ground occupies space.
func (s *ChunkStore) SurfaceY(x, z int) int {
	for y := s.gen.Height - 1; y > 0; y-- {
		if BlockSolid(s.GetBlock(Vec3i{X: x, Y: y, Z: z})) {
			return y + 1
		}
	}
	return 1
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

func (s *ChunkStore) ChunkAt(k ChunkKey) *Chunk {
	return s.getOrGenChunk(k.CX, k.CZ)
}

func (s *ChunkStore) getOrGenChunk(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.chunks[k]; ok {
		return ch
	}
	ch := &Chunk{
		CX:     cx,
		CZ:     cz,
		Height: s.gen.Height,
		Blocks: make([]uint16, ChunkSize*ChunkSize*s.gen.Height),
	}
	s.generateChunk(ch)
	ch.dirty = true
	_ = ch.Digest() // initialize digest
	s.chunks[k] = ch
	return ch
}
