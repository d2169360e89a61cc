package voxel

import "testing"

func TestChunkCoord_RoundTrip(t *testing.T) {
	cases := [][3]int32{
		{0, 0, 0},
		{1, 2, 3},
		{-1, -1, -1},
		{100, -50, 2000},
		{33554431, 2047, 33554431},    // field maxima
		{-33554432, -2048, -33554432}, // field minima
		{-12345, 1000, 12345},
	}
	for _, c := range cases {
		coord := NewChunkCoord(c[0], c[1], c[2])
		x, y, z := coord.Unpack()
		if x != c[0] || y != c[1] || z != c[2] {
			t.Fatalf("round trip %v: got (%d,%d,%d)", c, x, y, z)
		}
	}
}

func TestChunkCoord_NeighborsDifferInOneField(t *testing.T) {
	c := NewChunkCoord(10, -3, -77)
	adj := c.Adjacent()
	want := [][3]int32{
		{9, -3, -77}, {11, -3, -77},
		{10, -4, -77}, {10, -2, -77},
		{10, -3, -78}, {10, -3, -76},
	}
	for i, n := range adj {
		x, y, z := n.Unpack()
		if x != want[i][0] || y != want[i][1] || z != want[i][2] {
			t.Fatalf("neighbor %d: got (%d,%d,%d) want %v", i, x, y, z, want[i])
		}
	}
}

func TestFromWorldPos_FloorsNegatives(t *testing.T) {
	cases := []struct {
		pos  Vec3
		want [3]int32
	}{
		{Vec3{0, 0, 0}, [3]int32{0, 0, 0}},
		{Vec3{15.9, 15.9, 15.9}, [3]int32{0, 0, 0}},
		{Vec3{16, 0, 0}, [3]int32{1, 0, 0}},
		{Vec3{-0.5, 0, 0}, [3]int32{-1, 0, 0}},
		{Vec3{-16.0, -0.1, -17}, [3]int32{-1, -1, -2}},
	}
	for _, c := range cases {
		coord := FromWorldPos(c.pos)
		x, y, z := coord.Unpack()
		if x != c.want[0] || y != c.want[1] || z != c.want[2] {
			t.Fatalf("FromWorldPos(%v): got (%d,%d,%d) want %v", c.pos, x, y, z, c.want)
		}
	}
}

func TestChunkCoord_DistSq(t *testing.T) {
	a := NewChunkCoord(0, 0, 0)
	b := NewChunkCoord(3, -4, 0)
	if got := a.DistSq(b); got != 25 {
		t.Fatalf("DistSq: got %d want 25", got)
	}
	if got := b.DistSq(a); got != 25 {
		t.Fatalf("DistSq symmetric: got %d want 25", got)
	}
}

func TestChunkCoord_BinaryRoundTrip(t *testing.T) {
	c := NewChunkCoord(-7, 12, 99)
	b, err := c.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(b) != 8 {
		t.Fatalf("marshal length: got %d want 8", len(b))
	}
	var out ChunkCoord
	if err := out.UnmarshalBinary(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != c {
		t.Fatalf("round trip: got %v want %v", out, c)
	}
	var short ChunkCoord
	if err := short.UnmarshalBinary(b[:5]); err == nil {
		t.Fatalf("unmarshal short input: want error")
	}
}

func TestLocalPos_IndexRoundTrip(t *testing.T) {
	for i := 0; i < ChunkVolume; i++ {
		p := LocalFromIndex(i)
		if p.Index() != i {
			t.Fatalf("index %d: round trip gave %d", i, p.Index())
		}
		q := NewLocalPos(p.X(), p.Y(), p.Z())
		if q != p {
			t.Fatalf("index %d: component rebuild gave %v want %v", i, q, p)
		}
	}
}

func TestLocalFromWorldPos_Negatives(t *testing.T) {
	p := LocalFromWorldPos(Vec3{-0.5, -16, -1})
	if p.X() != 15 || p.Y() != 0 || p.Z() != 15 {
		t.Fatalf("got (%d,%d,%d) want (15,0,15)", p.X(), p.Y(), p.Z())
	}
}

func TestLocalPos_FaceNeighbors(t *testing.T) {
	if n := NewLocalPos(0, 0, 0).FaceNeighbors(); len(n) != 3 {
		t.Fatalf("corner: got %d faces want 3", len(n))
	}
	if n := NewLocalPos(0, 7, 7).FaceNeighbors(); len(n) != 1 {
		t.Fatalf("face cell: got %d faces want 1", len(n))
	}
	if n := NewLocalPos(7, 7, 7).FaceNeighbors(); len(n) != 0 {
		t.Fatalf("interior: got %d faces want 0", len(n))
	}
	n := NewLocalPos(15, 3, 3).FaceNeighbors()
	if len(n) != 1 || n[0] != [3]int32{1, 0, 0} {
		t.Fatalf("x-max face: got %v", n)
	}
	if !NewLocalPos(0, 5, 5).OnBorder() || NewLocalPos(8, 8, 8).OnBorder() {
		t.Fatalf("OnBorder misclassified")
	}
}
