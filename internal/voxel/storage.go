package voxel

// StorageKind tags the encoding a BlockStorage currently uses.
type StorageKind uint8

const (
	KindUniform StorageKind = iota
	KindCompact
	KindSparse
	KindGiant
	KindZigzag
)

func (k StorageKind) String() string {
	switch k {
	case KindUniform:
		return "Uniform"
	case KindCompact:
		return "Compact"
	case KindSparse:
		return "Sparse"
	case KindGiant:
		return "Giant"
	case KindZigzag:
		return "Zigzag"
	default:
		return "Unknown"
	}
}

const (
	compactPaletteCap = 16
	sparsePaletteCap  = 256
	giantPaletteCap   = ChunkVolume

	compactIndexBytes = ChunkVolume / 2     // two 4-bit indices per byte
	sparseIndexBytes  = ChunkVolume         // one byte per cell
	giantIndexBytes   = ChunkVolume * 3 / 2 // 12 bits per cell
)

// BlockStorage holds one chunk's 4096 cells in the densest encoding the
// current palette cardinality allows. Writes promote to the next tier
// when a new distinct value overflows the palette; demotion happens
// only in Optimize.
//
// Cell indices passed to Get/Set are masked into [0, ChunkVolume), the
// same policy for every encoding.
type BlockStorage struct {
	kind    StorageKind
	uniform Block   // Uniform only
	palette []Block // Compact/Sparse/Giant; insertion order
	indices []byte  // packed per-cell palette indices
	blocks  []Block // Zigzag only: direct values, no palette
}

// EmptyStorage is uniform air.
func EmptyStorage() BlockStorage {
	return BlockStorage{kind: KindUniform, uniform: Air()}
}

func UniformStorage(b Block) BlockStorage {
	return BlockStorage{kind: KindUniform, uniform: b}
}

func (s *BlockStorage) Kind() StorageKind { return s.kind }

func (s *BlockStorage) Get(i int) Block {
	i &= cellMask
	switch s.kind {
	case KindUniform:
		return s.uniform
	case KindCompact:
		return s.palette[GetCompactIndex(s.indices, i)]
	case KindSparse:
		return s.palette[s.indices[i]]
	case KindGiant:
		return s.palette[GetGiantIndex(s.indices, i)]
	default:
		return s.blocks[i]
	}
}

// Set writes a cell, promoting the encoding when the palette would
// overflow the current tier. Writing the value already stored is a
// strict no-op.
func (s *BlockStorage) Set(i int, b Block) {
	i &= cellMask
	if s.Get(i) == b {
		return
	}

	switch s.kind {
	case KindUniform:
		// First divergent cell: two distinct values, straight to Compact.
		palette := make([]Block, 0, compactPaletteCap)
		palette = append(palette, s.uniform, b)
		indices := make([]byte, compactIndexBytes)
		SetCompactIndex(indices, i, 1)
		*s = BlockStorage{kind: KindCompact, palette: palette, indices: indices}

	case KindCompact:
		idx := s.paletteAdd(b)
		if len(s.palette) <= compactPaletteCap {
			SetCompactIndex(s.indices, i, uint8(idx))
			return
		}
		// 17th distinct value: widen to one byte per cell.
		indices := make([]byte, sparseIndexBytes)
		for j := 0; j < ChunkVolume; j++ {
			indices[j] = GetCompactIndex(s.indices, j)
		}
		indices[i] = uint8(idx)
		s.kind = KindSparse
		s.indices = indices

	case KindSparse:
		idx := s.paletteAdd(b)
		if len(s.palette) <= sparsePaletteCap {
			s.indices[i] = uint8(idx)
			return
		}
		// 257th distinct value: widen to 12 bits per cell.
		indices := make([]byte, giantIndexBytes)
		for j := 0; j < ChunkVolume; j++ {
			SetGiantIndex(indices, j, uint16(s.indices[j]))
		}
		SetGiantIndex(indices, i, uint16(idx))
		s.kind = KindGiant
		s.indices = indices

	case KindGiant:
		idx := s.paletteAdd(b)
		if len(s.palette) <= giantPaletteCap {
			SetGiantIndex(s.indices, i, uint16(idx))
			return
		}
		// Palette beyond the cell count: drop the palette entirely.
		// Unreachable for 16^3 chunks (4096 distinct values already fill
		// the Giant tier) but the transition is kept for other sizes.
		blocks := make([]Block, ChunkVolume)
		for j := 0; j < ChunkVolume; j++ {
			blocks[j] = s.palette[GetGiantIndex(s.indices, j)]
		}
		blocks[i] = b
		*s = BlockStorage{kind: KindZigzag, blocks: blocks}

	case KindZigzag:
		s.blocks[i] = b
	}
}

// paletteAdd returns the palette index for b, appending it if new.
// Entries are never removed here; only Optimize rebuilds the palette.
func (s *BlockStorage) paletteAdd(b Block) int {
	for i, p := range s.palette {
		if p == b {
			return i
		}
	}
	s.palette = append(s.palette, b)
	return len(s.palette) - 1
}

// Palette returns the distinct-value table in insertion order. Index 0
// is the value the storage started as. For Zigzag the table is derived
// by first-use scan. Callers must not mutate the returned slice.
func (s *BlockStorage) Palette() []Block {
	switch s.kind {
	case KindUniform:
		return []Block{s.uniform}
	case KindZigzag:
		palette, _ := s.remap()
		return palette
	default:
		return s.palette
	}
}

// remap scans all cells and returns a first-use-ordered palette plus
// per-cell indices into it.
func (s *BlockStorage) remap() ([]Block, []uint16) {
	palette := make([]Block, 0, compactPaletteCap)
	seen := make(map[Block]uint16, compactPaletteCap)
	out := make([]uint16, ChunkVolume)
	for i := 0; i < ChunkVolume; i++ {
		b := s.Get(i)
		idx, ok := seen[b]
		if !ok {
			idx = uint16(len(palette))
			seen[b] = idx
			palette = append(palette, b)
		}
		out[i] = idx
	}
	return palette, out
}

// Optimize rebuilds the storage as the smallest adequate encoding for
// its current distinct-value cardinality. Idempotent: a second call
// reproduces the same bytes.
func (s *BlockStorage) Optimize() {
	if s.kind == KindUniform {
		return
	}
	palette, cells := s.remap()
	switch {
	case len(palette) == 1:
		*s = BlockStorage{kind: KindUniform, uniform: palette[0]}
	case len(palette) <= compactPaletteCap:
		indices := make([]byte, compactIndexBytes)
		for i, idx := range cells {
			SetCompactIndex(indices, i, uint8(idx))
		}
		*s = BlockStorage{kind: KindCompact, palette: palette, indices: indices}
	case len(palette) <= sparsePaletteCap:
		indices := make([]byte, sparseIndexBytes)
		for i, idx := range cells {
			indices[i] = uint8(idx)
		}
		*s = BlockStorage{kind: KindSparse, palette: palette, indices: indices}
	case len(palette) <= giantPaletteCap:
		indices := make([]byte, giantIndexBytes)
		for i, idx := range cells {
			SetGiantIndex(indices, i, idx)
		}
		*s = BlockStorage{kind: KindGiant, palette: palette, indices: indices}
	default:
		blocks := make([]Block, ChunkVolume)
		for i := 0; i < ChunkVolume; i++ {
			blocks[i] = s.Get(i)
		}
		*s = BlockStorage{kind: KindZigzag, blocks: blocks}
	}
}

// MemoryUsage reports the approximate allocated bytes and the encoding
// name. Diagnostics only.
func (s *BlockStorage) MemoryUsage() (int, string) {
	const tag = 1
	switch s.kind {
	case KindUniform:
		return tag + blockMemSize, s.kind.String()
	case KindZigzag:
		return tag + ChunkVolume*blockMemSize, s.kind.String()
	default:
		return tag + cap(s.palette)*blockMemSize + len(s.indices), s.kind.String()
	}
}

// GetCompactIndex reads a 4-bit palette index. Even cells occupy the
// low nibble, odd cells the high nibble.
func GetCompactIndex(indices []byte, pos int) uint8 {
	if pos&1 == 1 {
		return indices[pos/2] >> 4 & 0x0F
	}
	return indices[pos/2] & 0x0F
}

// SetCompactIndex writes a 4-bit palette index, preserving its byte
// neighbor.
func SetCompactIndex(indices []byte, pos int, v uint8) {
	if pos&1 == 1 {
		indices[pos/2] = indices[pos/2]&0x0F | v&0x0F<<4
	} else {
		indices[pos/2] = indices[pos/2]&0xF0 | v&0x0F
	}
}

// GetGiantIndex reads a 12-bit palette index at 1.5 bytes per entry.
// Even entries start on a byte boundary, odd entries straddle one.
func GetGiantIndex(indices []byte, pos int) uint16 {
	bit := pos * 12
	base := bit / 8
	off := bit % 8
	if off <= 4 {
		combined := uint16(indices[base]) | uint16(indices[base+1])<<8
		return combined >> off & 0x0FFF
	}
	combined := uint32(indices[base]) | uint32(indices[base+1])<<8 | uint32(indices[base+2])<<16
	return uint16(combined >> off & 0x0FFF)
}

// SetGiantIndex writes a 12-bit palette index without disturbing the
// adjacent entry sharing its middle byte.
func SetGiantIndex(indices []byte, pos int, v uint16) {
	v &= 0x0FFF
	bit := pos * 12
	base := bit / 8
	off := bit % 8
	if off <= 4 {
		mask := uint16(0x0FFF) << off
		cur := uint16(indices[base]) | uint16(indices[base+1])<<8
		cur = cur&^mask | v<<off
		indices[base] = byte(cur)
		indices[base+1] = byte(cur >> 8)
		return
	}
	mask := uint32(0x0FFF) << off
	cur := uint32(indices[base]) | uint32(indices[base+1])<<8 | uint32(indices[base+2])<<16
	cur = cur&^mask | uint32(v)<<off
	indices[base] = byte(cur)
	indices[base+1] = byte(cur >> 8)
	indices[base+2] = byte(cur >> 16)
}
