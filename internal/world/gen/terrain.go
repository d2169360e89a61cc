package gen

import (
	"voxelforge/internal/mathx"
	"voxelforge/internal/voxel"
)

// Material ids the default generator emits. Higher layers are free to
// define more; these are only what the terrain itself places.
const (
	Air uint16 = iota
	Stone
	Dirt
	Grass
	Sand
	Gravel
	Log
	CoalOre
	IronOre
	CopperOre
	CrystalOre
)

const defaultBiomeRegionSize = 96

// New returns a terrain generator with the given biome region edge
// length in blocks. Sizes <= 0 fall back to the default.
func New(biomeRegionSize int) func(voxel.ChunkCoord, int64) *voxel.Chunk {
	if biomeRegionSize <= 0 {
		biomeRegionSize = defaultBiomeRegionSize
	}
	return func(coord voxel.ChunkCoord, seed int64) *voxel.Chunk {
		return terrain(coord, seed, biomeRegionSize)
	}
}

// Terrain is the default seeded generator: a hashed heightmap with
// biome regions, a three-block topsoil layer and hashed ore pockets in
// the stone below. Pure in (coord, seed).
func Terrain(coord voxel.ChunkCoord, seed int64) *voxel.Chunk {
	return terrain(coord, seed, defaultBiomeRegionSize)
}

func terrain(coord voxel.ChunkCoord, seed int64, biomeRegionSize int) *voxel.Chunk {
	cx, cy, cz := coord.Unpack()
	baseX := int(cx) * voxel.ChunkSize
	baseY := int(cy) * voxel.ChunkSize
	baseZ := int(cz) * voxel.ChunkSize

	ch := voxel.EmptyChunk()
	for z := 0; z < voxel.ChunkSize; z++ {
		for x := 0; x < voxel.ChunkSize; x++ {
			wx := baseX + x
			wz := baseZ + z
			h := HeightAt(seed, wx, wz)
			if baseY > h {
				continue
			}
			biome := BiomeAt(seed, wx, wz, biomeRegionSize)
			for y := 0; y < voxel.ChunkSize; y++ {
				wy := baseY + y
				if wy > h {
					break
				}
				b := blockAt(seed, biome, wx, wy, wz, h)
				if b == Air {
					continue
				}
				ch.SetBlock(voxel.NewLocalPos(uint8(x), uint8(y), uint8(z)).Index(), voxel.NewBlock(b))
			}
		}
	}
	ch.Optimize()
	return ch
}

func blockAt(seed int64, biome string, wx, wy, wz, surface int) uint16 {
	switch {
	case wy == surface:
		switch biome {
		case BiomeDesert:
			return Sand
		case BiomeForest:
			if mathx.Hash2(seed+201, wx, wz)%1000 < 30 {
				return Log
			}
			return Grass
		default:
			return Grass
		}
	case wy >= surface-3:
		if biome == BiomeDesert {
			return Sand
		}
		return Dirt
	default:
		return oreOrStone(seed, wx, wy, wz)
	}
}

func oreOrStone(seed int64, wx, wy, wz int) uint16 {
	switch {
	case InCluster(seed+101, wx, wz, 192, 2, 200) && depthRoll(seed+101, wx, wy, wz, 80):
		return CrystalOre
	case InCluster(seed+102, wx, wz, 128, 3, 450) && depthRoll(seed+102, wx, wy, wz, 250):
		return IronOre
	case InCluster(seed+103, wx, wz, 128, 3, 450) && depthRoll(seed+103, wx, wy, wz, 250):
		return CopperOre
	case InCluster(seed+104, wx, wz, 64, 4, 650) && depthRoll(seed+104, wx, wy, wz, 400):
		return CoalOre
	case mathx.Hash3(seed+105, wx, wy, wz)%1000 < 25:
		return Gravel
	default:
		return Stone
	}
}

// depthRoll thins a 2D cluster column into pockets along y.
func depthRoll(seed int64, wx, wy, wz int, permille uint64) bool {
	return mathx.Hash3(seed, wx, wy, wz)%1000 < permille
}
