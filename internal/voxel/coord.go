package voxel

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// ChunkSize is the edge length of a chunk in cells.
	ChunkSize = 16
	// ChunkVolume is the cell count of one chunk.
	ChunkVolume = ChunkSize * ChunkSize * ChunkSize

	cellMask = ChunkVolume - 1
)

// Vec3 is a floating-point world position.
type Vec3 struct {
	X, Y, Z float64
}

// ChunkCoord packs a signed 3D chunk coordinate into 64 bits:
// X in the top 26 bits, Y in the next 12, Z in the low 26. The vertical
// axis gets far fewer bits than the horizontal ones. Values outside the
// field ranges wrap silently; every bit pattern is a valid coordinate.
type ChunkCoord uint64

const (
	coordYShift = 26
	coordXShift = 38

	coordXMask = 1<<26 - 1
	coordYMask = 1<<12 - 1
	coordZMask = 1<<26 - 1
)

func NewChunkCoord(x, y, z int32) ChunkCoord {
	return ChunkCoord(PackCoord(x, y, z))
}

func PackCoord(x, y, z int32) uint64 {
	return (uint64(uint32(x))&coordXMask)<<coordXShift |
		(uint64(uint32(y))&coordYMask)<<coordYShift |
		uint64(uint32(z))&coordZMask
}

// X recovers the signed x field: shift left then arithmetic shift right
// by (32 - width) to sign-extend.
func (c ChunkCoord) X() int32 {
	return int32(uint64(c)>>coordXShift&coordXMask) << 6 >> 6
}

func (c ChunkCoord) Y() int32 {
	return int32(uint64(c)>>coordYShift&coordYMask) << 20 >> 20
}

func (c ChunkCoord) Z() int32 {
	return int32(uint64(c)&coordZMask) << 6 >> 6
}

func (c ChunkCoord) Unpack() (x, y, z int32) {
	return c.X(), c.Y(), c.Z()
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("chunk(%d,%d,%d)", c.X(), c.Y(), c.Z())
}

// FromWorldPos maps a world position to the chunk containing it.
// Floor division, so negative positions land in the correct negative
// chunk.
func FromWorldPos(p Vec3) ChunkCoord {
	return NewChunkCoord(
		int32(math.Floor(p.X/ChunkSize)),
		int32(math.Floor(p.Y/ChunkSize)),
		int32(math.Floor(p.Z/ChunkSize)),
	)
}

// ToWorldPos returns the chunk's minimum corner in world space.
func (c ChunkCoord) ToWorldPos() Vec3 {
	return Vec3{
		X: float64(c.X()) * ChunkSize,
		Y: float64(c.Y()) * ChunkSize,
		Z: float64(c.Z()) * ChunkSize,
	}
}

// DistSq is the squared distance to another chunk coordinate, in chunk
// units.
func (c ChunkCoord) DistSq(o ChunkCoord) int64 {
	dx := int64(c.X() - o.X())
	dy := int64(c.Y() - o.Y())
	dz := int64(c.Z() - o.Z())
	return dx*dx + dy*dy + dz*dz
}

// Adjacent returns the six axis neighbors.
func (c ChunkCoord) Adjacent() [6]ChunkCoord {
	x, y, z := c.Unpack()
	return [6]ChunkCoord{
		NewChunkCoord(x-1, y, z),
		NewChunkCoord(x+1, y, z),
		NewChunkCoord(x, y-1, z),
		NewChunkCoord(x, y+1, z),
		NewChunkCoord(x, y, z-1),
		NewChunkCoord(x, y, z+1),
	}
}

func (c ChunkCoord) Offset(dx, dy, dz int32) ChunkCoord {
	x, y, z := c.Unpack()
	return NewChunkCoord(x+dx, y+dy, z+dz)
}

func (c ChunkCoord) MarshalBinary() ([]byte, error) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(c))
	return b[:], nil
}

func (c *ChunkCoord) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("chunk coord: %w: got %d bytes, want 8", ErrTruncated, len(data))
	}
	*c = ChunkCoord(binary.LittleEndian.Uint64(data))
	return nil
}

// LocalPos is a position within a chunk, 0-15 on each axis, packed as
// the flat cell index: x in the low nibble, then y, then z.
type LocalPos uint16

func NewLocalPos(x, y, z uint8) LocalPos {
	return LocalPos(uint16(x&0xF) | uint16(y&0xF)<<4 | uint16(z&0xF)<<8)
}

// LocalFromIndex wraps a flat cell index; only the low 12 bits are
// meaningful.
func LocalFromIndex(i int) LocalPos {
	return LocalPos(i & cellMask)
}

// LocalFromWorldPos maps a world position to its cell within the
// containing chunk (Euclidean remainder, correct for negatives).
func LocalFromWorldPos(p Vec3) LocalPos {
	x := int32(math.Floor(p.X)) & (ChunkSize - 1)
	y := int32(math.Floor(p.Y)) & (ChunkSize - 1)
	z := int32(math.Floor(p.Z)) & (ChunkSize - 1)
	return NewLocalPos(uint8(x), uint8(y), uint8(z))
}

func (p LocalPos) X() uint8 { return uint8(p & 0xF) }
func (p LocalPos) Y() uint8 { return uint8(p >> 4 & 0xF) }
func (p LocalPos) Z() uint8 { return uint8(p >> 8 & 0xF) }

// Index is the flat cell index in [0, ChunkVolume).
func (p LocalPos) Index() int { return int(p) & cellMask }

// OnBorder reports whether any axis sits on a chunk face.
func (p LocalPos) OnBorder() bool {
	x, y, z := p.X(), p.Y(), p.Z()
	return x == 0 || x == ChunkSize-1 ||
		y == 0 || y == ChunkSize-1 ||
		z == 0 || z == ChunkSize-1
}

// FaceNeighbors appends the axis offsets of every chunk face this cell
// touches. A corner cell yields up to three offsets.
func (p LocalPos) FaceNeighbors() [][3]int32 {
	var out [][3]int32
	switch {
	case p.X() == 0:
		out = append(out, [3]int32{-1, 0, 0})
	case p.X() == ChunkSize-1:
		out = append(out, [3]int32{1, 0, 0})
	}
	switch {
	case p.Y() == 0:
		out = append(out, [3]int32{0, -1, 0})
	case p.Y() == ChunkSize-1:
		out = append(out, [3]int32{0, 1, 0})
	}
	switch {
	case p.Z() == 0:
		out = append(out, [3]int32{0, 0, -1})
	case p.Z() == ChunkSize-1:
		out = append(out, [3]int32{0, 0, 1})
	}
	return out
}
