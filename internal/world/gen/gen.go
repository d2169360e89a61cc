package gen

import "voxelforge/internal/mathx"

// Biome names as produced by BiomeFrom.
const (
	BiomePlains = "PLAINS"
	BiomeForest = "FOREST"
	BiomeDesert = "DESERT"
)

func BiomeFrom(noise uint64) string {
	switch noise % 3 {
	case 0:
		return BiomePlains
	case 1:
		return BiomeForest
	default:
		return BiomeDesert
	}
}

// BiomeAt picks the biome of the region containing (x, z). Regions are
// regionSize blocks on a side.
func BiomeAt(seed int64, x, z, regionSize int) string {
	if regionSize <= 0 {
		regionSize = 1
	}
	rx := mathx.FloorDiv(x, regionSize)
	rz := mathx.FloorDiv(z, regionSize)
	return BiomeFrom(mathx.Hash2(seed, rx, rz))
}

// InCluster reports whether (x, z) falls inside a hashed circular
// cluster. Each grid cell rolls probPermille for a cluster and hashes
// its center; the 3x3 cell neighborhood is checked so clusters can
// straddle cell edges.
func InCluster(seed int64, x, z, grid, radius int, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := mathx.FloorDiv(x, grid)
	gz := mathx.FloorDiv(z, grid)
	r2 := radius * radius

	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			cgx := gx + dx
			cgz := gz + dz
			h := mathx.Hash2(seed, cgx, cgz)
			if h%1000 >= probPermille {
				continue
			}

			ox := int((h >> 10) % uint64(grid))
			oz := int((h >> 20) % uint64(grid))
			cx := cgx*grid + ox
			cz := cgz*grid + oz

			ddx := x - cx
			ddz := z - cz
			if ddx*ddx+ddz*ddz <= r2 {
				return true
			}
		}
	}
	return false
}

// HeightAt is the terrain surface height at (x, z): hashed corner
// heights on a coarse lattice, bilinearly interpolated. Integer math
// throughout so every platform agrees on the result.
func HeightAt(seed int64, x, z int) int {
	const (
		cell      = 32
		maxHeight = 24
	)
	gx := mathx.FloorDiv(x, cell)
	gz := mathx.FloorDiv(z, cell)
	fx := x - gx*cell
	fz := z - gz*cell

	h00 := int(mathx.Hash2(seed, gx, gz) % maxHeight)
	h10 := int(mathx.Hash2(seed, gx+1, gz) % maxHeight)
	h01 := int(mathx.Hash2(seed, gx, gz+1) % maxHeight)
	h11 := int(mathx.Hash2(seed, gx+1, gz+1) % maxHeight)

	top := (h00*(cell-fx) + h10*fx) * (cell - fz)
	bot := (h01*(cell-fx) + h11*fx) * fz
	return (top + bot) / (cell * cell)
}
