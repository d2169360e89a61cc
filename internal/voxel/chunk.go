package voxel

import "fmt"

// Chunk is the unit of world granularity: one BlockStorage plus the
// derived state the mesher and streamer consume. The dirty flag means
// the block contents changed since the last mesh build; finalMesh=false
// means a neighbor changed in a way that may expose or hide faces
// across the seam.
type Chunk struct {
	storage  BlockStorage
	entities EntityStorage

	dirty     bool
	finalMesh bool
}

// EmptyChunk is uniform air, clean, with no entities.
func EmptyChunk() *Chunk {
	return &Chunk{storage: EmptyStorage()}
}

func NewChunk(fill Block) *Chunk {
	return &Chunk{storage: UniformStorage(fill), dirty: true}
}

func (c *Chunk) Storage() *BlockStorage { return &c.storage }

func (c *Chunk) GetBlock(i int) Block { return c.storage.Get(i) }

// SetBlock writes a cell and marks the chunk dirty. Writing the value
// already stored changes nothing, including the flags.
func (c *Chunk) SetBlock(i int, b Block) {
	if c.storage.Get(i) == b {
		return
	}
	c.storage.Set(i, b)
	c.dirty = true
	c.finalMesh = false
}

func (c *Chunk) Dirty() bool     { return c.dirty }
func (c *Chunk) FinalMesh() bool { return c.finalMesh }

// MarkMeshed records that the mesher consumed the current contents.
func (c *Chunk) MarkMeshed() {
	c.dirty = false
	c.finalMesh = true
}

// InvalidateMesh is called when a neighboring chunk changed across the
// shared seam.
func (c *Chunk) InvalidateMesh() { c.finalMesh = false }

// IsBorderBlock reports whether the cell sits on any chunk face.
func (c *Chunk) IsBorderBlock(p LocalPos) bool { return p.OnBorder() }

// IsBlockCull reports whether the face adjacent to pos needs no
// geometry: positions outside the chunk defer to the neighbor, air
// never occludes.
func (c *Chunk) IsBlockCull(pos Vec3) bool {
	if pos.X < 0 || pos.Y < 0 || pos.Z < 0 ||
		pos.X >= ChunkSize || pos.Y >= ChunkSize || pos.Z >= ChunkSize {
		return true
	}
	p := NewLocalPos(uint8(pos.X), uint8(pos.Y), uint8(pos.Z))
	return c.GetBlock(p.Index()).IsAir()
}

func (c *Chunk) Optimize() {
	c.storage.Optimize()
	c.entities.Optimize()
}

func (c *Chunk) MemoryUsage() (int, string) { return c.storage.MemoryUsage() }

func (c *Chunk) Entities() *EntityStorage { return &c.entities }

// MarshalBinary serializes the block contents. Entities and mesh state
// are not part of the wire form.
func (c *Chunk) MarshalBinary() ([]byte, error) {
	return c.storage.MarshalBinary()
}

// UnmarshalBinary decodes a chunk record. A decoded chunk is dirty:
// its mesh was never serialized and must be rebuilt.
func (c *Chunk) UnmarshalBinary(data []byte) error {
	s, err := DecodeStorage(data)
	if err != nil {
		return fmt.Errorf("chunk: %w", err)
	}
	c.storage = s
	c.entities = EntityStorage{}
	c.dirty = true
	c.finalMesh = false
	return nil
}
