package voxel

import "testing"

func TestChunk_DirtyAndMeshFlags(t *testing.T) {
	c := EmptyChunk()
	if c.Dirty() || c.FinalMesh() {
		t.Fatalf("fresh chunk flags: dirty=%v final=%v", c.Dirty(), c.FinalMesh())
	}

	c.MarkMeshed()
	if c.Dirty() || !c.FinalMesh() {
		t.Fatalf("after mesh: dirty=%v final=%v", c.Dirty(), c.FinalMesh())
	}

	c.SetBlock(0, NewBlock(1))
	if !c.Dirty() || c.FinalMesh() {
		t.Fatalf("after write: dirty=%v final=%v", c.Dirty(), c.FinalMesh())
	}

	// Writing the stored value is a strict no-op.
	c.MarkMeshed()
	c.SetBlock(0, NewBlock(1))
	if c.Dirty() || !c.FinalMesh() {
		t.Fatalf("no-op write touched flags: dirty=%v final=%v", c.Dirty(), c.FinalMesh())
	}

	c.InvalidateMesh()
	if c.Dirty() || c.FinalMesh() {
		t.Fatalf("neighbor invalidation: dirty=%v final=%v", c.Dirty(), c.FinalMesh())
	}
}

func TestChunk_IsBlockCull(t *testing.T) {
	c := NewChunk(NewBlock(1))
	if !c.IsBlockCull(Vec3{-1, 0, 0}) || !c.IsBlockCull(Vec3{16, 0, 0}) {
		t.Fatalf("out-of-chunk positions must cull")
	}
	if !c.IsBlockCull(Vec3{5, 5, 5}) {
		t.Fatalf("solid neighbor must cull")
	}
	c.SetBlock(NewLocalPos(5, 5, 5).Index(), Air())
	if c.IsBlockCull(Vec3{5, 5, 5}) {
		t.Fatalf("air neighbor must not cull")
	}
}

func TestChunk_BinaryRoundTrip(t *testing.T) {
	c := EmptyChunk()
	for i := 0; i < 2000; i++ {
		c.SetBlock(i, NewBlock(uint16(i%7)))
	}
	c.MarkMeshed()

	data, err := c.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Chunk
	if err := out.UnmarshalBinary(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for i := 0; i < ChunkVolume; i++ {
		if out.GetBlock(i) != c.GetBlock(i) {
			t.Fatalf("cell %d differs", i)
		}
	}
	// A decoded chunk needs a fresh mesh.
	if !out.Dirty() || out.FinalMesh() {
		t.Fatalf("decoded chunk flags: dirty=%v final=%v", out.Dirty(), out.FinalMesh())
	}
}

func TestChunk_UnmarshalRejectsGarbage(t *testing.T) {
	var c Chunk
	if err := c.UnmarshalBinary([]byte{99}); err == nil {
		t.Fatalf("want error for bad tag")
	}
	if err := c.UnmarshalBinary(nil); err == nil {
		t.Fatalf("want error for empty input")
	}
}
