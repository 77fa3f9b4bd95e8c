package world

import "github.com/aquilax/go-perlin"

type terrainNoise struct {
	p *perlin.Perlin
}

func newTerrainNoise(seed int64) *terrainNoise {
	// alpha/beta/octaves follow the usual smooth-terrain setup.
	return &terrainNoise{p: perlin.NewPerlin(2.0, 2.0, 3, seed)}
}

// at returns noise in [0,1) for a block column.
func (n *terrainNoise) at(x, z int, scale float64) float64 {
	v := n.p.Noise2D(float64(x)/scale, float64(z)/scale)
	return (v + 1.0) / 2.0
}

// heightAt is the terrain surface height (top solid y + 1) for a column.
func (s *ChunkStore) heightAt(x, z int) int {
	h := s.gen.BaseHeight + int(float64(s.gen.Amplitude)*s.noise.at(x, z, s.gen.NoiseScale))
	if h < 2 {
		h = 2
	}
	if h > s.gen.Height-2 {
		h = s.gen.Height - 2
	}
	return h
}

func (s *ChunkStore) generateChunk(ch *Chunk) {
	for lz := 0; lz < ChunkSize; lz++ {
		for lx := 0; lx < ChunkSize; lx++ {
			wx := ch.CX*ChunkSize + lx
			wz := ch.CZ*ChunkSize + lz
			if wx < 0 || wx >= s.gen.SizeX || wz < 0 || wz >= s.gen.SizeZ {
				continue // out-of-bounds columns stay air
			}
			h := s.heightAt(wx, wz)
			for y := 0; y < h; y++ {
				ch.Set(lx, y, lz, s.columnBlock(wx, y, wz, h))
			}
		}
	}
}

func (s *ChunkStore) columnBlock(x, y, z, surface int) uint16 {
	top := surface - 1
	switch {
	case y == top:
		if surface <= s.gen.SandBelow {
			return Sand
		}
		return Grass
	case y >= surface-1-s.gen.DirtDepth:
		return Dirt
	default:
		// Stone body with deterministic ore sprinkles.
		r := hash3(s.gen.Seed, x, y, z) % 1000
		if r < uint64(s.gen.CoalPermille) {
			return CoalOre
		}
		if r < uint64(s.gen.CoalPermille+s.gen.IronPermille) {
			return IronOre
		}
		return Stone
	}
}
