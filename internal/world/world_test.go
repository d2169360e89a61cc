package world

import (
	"sync"
	"testing"
	"time"

	"voxelforge/internal/voxel"
)

// markerGen fills cell 0 with a material derived from the coordinate so
// tests can tell which generation produced a chunk.
func markerGen(coord voxel.ChunkCoord, seed int64) *voxel.Chunk {
	c := voxel.EmptyChunk()
	x, y, z := coord.Unpack()
	c.SetBlock(0, voxel.NewBlock(uint16(x+y+z+100)))
	return c
}

func chunksInRadius(radius float64) int {
	r := int32(radius)
	r2 := int64(radius * radius)
	n := 0
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				if int64(dx)*int64(dx)+int64(dy)*int64(dy)+int64(dz)*int64(dz) <= r2 {
					n++
				}
			}
		}
	}
	return n
}

func pumpUntil(t *testing.T, w *World, center voxel.Vec3, radius float64, want int) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		w.UpdateLoadedChunks(center, radius)
		if w.ChunkCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("chunks did not converge: have %d want %d (queue=%d pending=%d)",
		w.ChunkCount(), want, w.QueueLen(), w.PendingCount())
}

func TestWorld_StreamsChunksAroundCenter(t *testing.T) {
	w := New(Options{Seed: 1, Generate: markerGen})
	w.StartGenerationThreads(4)
	defer w.StopGenerationThreads()

	const radius = 3.0
	want := chunksInRadius(radius)
	pumpUntil(t, w, voxel.Vec3{}, radius, want)

	center := voxel.NewChunkCoord(0, 0, 0)
	w.EachChunk(func(coord voxel.ChunkCoord, c *voxel.Chunk) bool {
		if center.DistSq(coord) > int64(radius*radius) {
			t.Fatalf("chunk %v outside radius", coord)
		}
		if c.GetBlock(0).IsAir() {
			t.Fatalf("chunk %v missing generated marker", coord)
		}
		return true
	})
	if w.LoadedCount() != want {
		t.Fatalf("loaded %d want %d", w.LoadedCount(), want)
	}
}

func TestWorld_EvictsChunksLeftBehind(t *testing.T) {
	w := New(Options{Seed: 1, Generate: markerGen})
	w.StartGenerationThreads(2)
	defer w.StopGenerationThreads()

	const radius = 2.0
	pumpUntil(t, w, voxel.Vec3{}, radius, chunksInRadius(radius))

	// Move the center far away; everything around the origin must go.
	far := voxel.Vec3{X: 100 * voxel.ChunkSize}
	pumpUntil(t, w, far, radius, chunksInRadius(radius))

	farCoord := voxel.FromWorldPos(far)
	w.EachChunk(func(coord voxel.ChunkCoord, _ *voxel.Chunk) bool {
		if farCoord.DistSq(coord) > int64(radius*radius) {
			t.Fatalf("stale chunk %v survived the move", coord)
		}
		return true
	})
}

func TestWorld_GeneratorPanicIsRetried(t *testing.T) {
	bad := voxel.NewChunkCoord(1, 0, 0)
	var mu sync.Mutex
	failures := 0
	gen := func(coord voxel.ChunkCoord, seed int64) *voxel.Chunk {
		if coord == bad {
			mu.Lock()
			first := failures == 0
			if first {
				failures++
			}
			mu.Unlock()
			if first {
				panic("boom")
			}
		}
		return markerGen(coord, seed)
	}

	w := New(Options{Seed: 1, Generate: gen})
	w.StartGenerationThreads(2)
	defer w.StopGenerationThreads()

	const radius = 2.0
	pumpUntil(t, w, voxel.Vec3{}, radius, chunksInRadius(radius))

	if _, ok := w.Chunk(bad); !ok {
		t.Fatalf("panicking coordinate never loaded")
	}
	mu.Lock()
	defer mu.Unlock()
	if failures != 1 {
		t.Fatalf("failure count: %d", failures)
	}
}

func TestWorld_StopIsIdempotentAndRestartable(t *testing.T) {
	w := New(Options{Seed: 1, Generate: markerGen})
	w.StartGenerationThreads(2)
	w.StopGenerationThreads()
	w.StopGenerationThreads()

	w.StartGenerationThreads(2)
	defer w.StopGenerationThreads()
	pumpUntil(t, w, voxel.Vec3{}, 1, chunksInRadius(1))
}

func TestWorld_SetBlockInvalidatesOnlyTouchedFaces(t *testing.T) {
	w := New(Options{Seed: 1, Generate: markerGen})

	chunks := make(map[voxel.ChunkCoord]*voxel.Chunk)
	origin := voxel.NewChunkCoord(0, 0, 0)
	chunks[origin] = voxel.EmptyChunk()
	for _, n := range origin.Adjacent() {
		chunks[n] = voxel.EmptyChunk()
	}
	w.Restore(chunks)
	for _, c := range chunks {
		c.MarkMeshed()
	}

	// Interior write touches no neighbor.
	w.SetBlock(voxel.Vec3{X: 8, Y: 8, Z: 8}, voxel.NewBlock(1))
	for coord, c := range chunks {
		if coord != origin && !c.FinalMesh() {
			t.Fatalf("interior write invalidated %v", coord)
		}
	}

	// A cell on the x=0 face touches exactly the -x neighbor.
	for _, c := range chunks {
		c.MarkMeshed()
	}
	w.SetBlock(voxel.Vec3{X: 0, Y: 8, Z: 8}, voxel.NewBlock(2))
	for coord, c := range chunks {
		x, y, z := coord.Unpack()
		switch {
		case coord == origin:
			if c.FinalMesh() {
				t.Fatalf("written chunk kept its mesh")
			}
		case x == -1 && y == 0 && z == 0:
			if c.FinalMesh() {
				t.Fatalf("-x neighbor not invalidated")
			}
		default:
			if !c.FinalMesh() {
				t.Fatalf("untouched neighbor %v invalidated", coord)
			}
		}
	}
}

func TestWorld_SetBlockMaterializesUnloadedChunk(t *testing.T) {
	w := New(Options{Seed: 1, Generate: markerGen})
	pos := voxel.Vec3{X: -20, Y: 5, Z: 33}
	if !w.GetBlock(pos).IsAir() {
		t.Fatalf("unloaded space must read as air")
	}
	w.SetBlock(pos, voxel.NewBlock(9))
	if got := w.GetBlock(pos); got.Material != 9 {
		t.Fatalf("read back: %v", got)
	}
	if w.ChunkCount() != 1 {
		t.Fatalf("chunk count: %d", w.ChunkCount())
	}
}

func TestChunkQueue_PopsNearestFirst(t *testing.T) {
	q := newChunkQueue()
	q.Push(voxel.NewChunkCoord(5, 0, 0), 25)
	q.Push(voxel.NewChunkCoord(1, 0, 0), 1)
	q.Push(voxel.NewChunkCoord(3, 0, 0), 9)

	var got []int64
	for {
		item, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, item.distSq)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 9 || got[2] != 25 {
		t.Fatalf("pop order: %v", got)
	}
}

func TestWorld_MemoryUsageCountsVariants(t *testing.T) {
	w := New(Options{Seed: 1, Generate: markerGen})
	chunks := map[voxel.ChunkCoord]*voxel.Chunk{
		voxel.NewChunkCoord(0, 0, 0): voxel.EmptyChunk(),
	}
	w.Restore(chunks)
	w.SetBlock(voxel.Vec3{X: 1, Y: 1, Z: 1}, voxel.NewBlock(1))

	total, variants := w.MemoryUsage()
	if total <= 0 {
		t.Fatalf("total: %d", total)
	}
	if variants["Compact"] != 1 {
		t.Fatalf("variants: %v", variants)
	}
}
