package voxel

// Block is one voxel cell value: a material id plus a packed rotation
// tag. Blocks are immutable, copied by value, and compared by
// (material, rotation).
type Block struct {
	Material uint16
	Rotation uint8
}

// Rotation bit layout: two bits per axis, x in the low pair.
const (
	rotMaskX  = 0b0000_0011
	rotMaskY  = 0b0000_1100
	rotMaskZ  = 0b0011_0000
	rotShiftY = 2
	rotShiftZ = 4
)

// BlockBinarySize is the serialized size of a Block: 2-byte material +
// 1-byte rotation, little-endian.
const BlockBinarySize = 3

// blockMemSize is the in-memory size of a Block (material + rotation,
// padded to alignment). Used only for memory-usage diagnostics.
const blockMemSize = 4

// Air returns the default "no block" sentinel.
func Air() Block { return Block{} }

func NewBlock(material uint16) Block {
	return Block{Material: material}
}

func NewBlockRotated(material uint16, rx, ry, rz uint8) Block {
	rot := rx&0b11 | ry&0b11<<rotShiftY | rz&0b11<<rotShiftZ
	return Block{Material: material, Rotation: rot}
}

func (b Block) IsAir() bool { return b.Material == 0 }

func (b Block) RotX() uint8 { return b.Rotation & rotMaskX }
func (b Block) RotY() uint8 { return b.Rotation & rotMaskY >> rotShiftY }
func (b Block) RotZ() uint8 { return b.Rotation & rotMaskZ >> rotShiftZ }

func appendBlock(dst []byte, b Block) []byte {
	return append(dst, byte(b.Material), byte(b.Material>>8), b.Rotation)
}

func readBlock(src []byte) Block {
	return Block{
		Material: uint16(src[0]) | uint16(src[1])<<8,
		Rotation: src[2],
	}
}
