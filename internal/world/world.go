package world

import (
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"voxelforge/internal/voxel"
)

// Generator produces the contents of one chunk. It must be a pure
// function of (coord, seed): workers call it concurrently and the same
// inputs must always yield the same chunk.
type Generator func(coord voxel.ChunkCoord, seed int64) *voxel.Chunk

type genResult struct {
	coord voxel.ChunkCoord
	chunk *voxel.Chunk
	err   error
}

// World owns the loaded chunk set and streams chunks in and out around
// a moving center. All methods except the worker internals must be
// called from a single owning goroutine; the generation workers only
// share the queue, the results channel and the stop state.
type World struct {
	chunks map[voxel.ChunkCoord]*voxel.Chunk
	loaded map[voxel.ChunkCoord]struct{}

	queue   *chunkQueue
	results chan genResult

	running atomic.Bool
	quit    chan struct{}
	workers sync.WaitGroup

	seed   int64
	gen    Generator
	tick   uint64
	logger *log.Logger
	events EventSink
}

type Options struct {
	Seed     int64
	Generate Generator
	Logger   *log.Logger // nil discards
	Events   EventSink   // nil discards
}

func New(opts Options) *World {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &World{
		chunks:  make(map[voxel.ChunkCoord]*voxel.Chunk, 1024),
		loaded:  make(map[voxel.ChunkCoord]struct{}, 1024),
		queue:   newChunkQueue(),
		results: make(chan genResult, 1024),
		seed:    opts.Seed,
		gen:     opts.Generate,
		logger:  logger,
		events:  opts.Events,
	}
}

func (w *World) Seed() int64         { return w.seed }
func (w *World) CurrentTick() uint64 { return w.tick }

// LoadedCount counts chunks that are loaded or reserved for pending
// generation.
func (w *World) LoadedCount() int { return len(w.loaded) }

// ChunkCount counts chunks with materialized contents.
func (w *World) ChunkCount() int { return len(w.chunks) }

// PendingCount counts reserved coordinates whose generation has not
// landed yet.
func (w *World) PendingCount() int { return len(w.loaded) - len(w.chunks) }

func (w *World) QueueLen() int { return w.queue.Len() }

func (w *World) Chunk(coord voxel.ChunkCoord) (*voxel.Chunk, bool) {
	c, ok := w.chunks[coord]
	return c, ok
}

// EachChunk calls fn for every materialized chunk until it returns
// false.
func (w *World) EachChunk(fn func(voxel.ChunkCoord, *voxel.Chunk) bool) {
	for coord, c := range w.chunks {
		if !fn(coord, c) {
			return
		}
	}
}

// Restore adopts previously saved chunks, marking their coordinates
// loaded so the streamer does not regenerate them.
func (w *World) Restore(chunks map[voxel.ChunkCoord]*voxel.Chunk) {
	for coord, c := range chunks {
		w.chunks[coord] = c
		w.loaded[coord] = struct{}{}
	}
}

// UpdateLoadedChunks advances one streaming tick around center: first
// evict everything outside the radius, then drain finished generations,
// then enqueue every missing coordinate within the radius. The order
// matters; draining before enqueueing keeps a chunk that just landed
// from being queued a second time.
func (w *World) UpdateLoadedChunks(center voxel.Vec3, radius float64) {
	w.tick++
	cc := voxel.FromWorldPos(center)
	cx, cy, cz := cc.Unpack()
	r := int32(math.Ceil(radius))
	r2 := int64(radius * radius)

	for coord := range w.loaded {
		if cc.DistSq(coord) > r2 {
			w.evict(coord)
		}
	}

	w.drainGenerated()

	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				d2 := int64(dx)*int64(dx) + int64(dy)*int64(dy) + int64(dz)*int64(dz)
				if d2 > r2 {
					continue
				}
				coord := voxel.NewChunkCoord(cx+dx, cy+dy, cz+dz)
				if _, ok := w.loaded[coord]; ok {
					continue
				}
				// Reserve before queueing so later ticks do not
				// enqueue the same coordinate again.
				w.loaded[coord] = struct{}{}
				w.queue.Push(coord, d2)
			}
		}
	}
}

func (w *World) drainGenerated() {
	for {
		select {
		case res := <-w.results:
			w.applyGenerated(res)
		default:
			return
		}
	}
}

func (w *World) applyGenerated(res genResult) {
	if _, ok := w.loaded[res.coord]; !ok {
		// Evicted while pending; drop the result.
		return
	}
	if res.err != nil {
		// Release the reservation so a later tick retries it.
		delete(w.loaded, res.coord)
		w.logger.Printf("generation failed at %v: %v", res.coord, res.err)
		w.emit(StreamEvent{Type: "gen_failed", Err: res.err.Error()}, res.coord)
		return
	}
	w.chunks[res.coord] = res.chunk
	for _, n := range res.coord.Adjacent() {
		if nc, ok := w.chunks[n]; ok {
			nc.InvalidateMesh()
		}
	}
	w.emit(StreamEvent{Type: "loaded"}, res.coord)
}

func (w *World) evict(coord voxel.ChunkCoord) {
	delete(w.loaded, coord)
	if _, ok := w.chunks[coord]; !ok {
		return
	}
	delete(w.chunks, coord)
	for _, n := range coord.Adjacent() {
		if nc, ok := w.chunks[n]; ok {
			nc.InvalidateMesh()
		}
	}
	w.emit(StreamEvent{Type: "evicted"}, coord)
}

func (w *World) emit(ev StreamEvent, coord voxel.ChunkCoord) {
	if w.events == nil {
		return
	}
	ev.Tick = w.tick
	ev.Coord = uint64(coord)
	ev.X, ev.Y, ev.Z = coord.Unpack()
	if err := w.events.Write(ev); err != nil {
		w.logger.Printf("event sink: %v", err)
	}
}

// GetBlock reads the block at a world position. Unloaded space is air.
func (w *World) GetBlock(pos voxel.Vec3) voxel.Block {
	c, ok := w.chunks[voxel.FromWorldPos(pos)]
	if !ok {
		return voxel.Air()
	}
	return c.GetBlock(voxel.LocalFromWorldPos(pos).Index())
}

// SetBlock writes the block at a world position, materializing an empty
// chunk if the position is in unloaded space. When the cell sits on a
// chunk face, only the neighbors across the touched faces get their
// mesh invalidated.
func (w *World) SetBlock(pos voxel.Vec3, b voxel.Block) {
	coord := voxel.FromWorldPos(pos)
	c, ok := w.chunks[coord]
	if !ok {
		c = voxel.EmptyChunk()
		w.chunks[coord] = c
		w.loaded[coord] = struct{}{}
	}
	local := voxel.LocalFromWorldPos(pos)
	if c.GetBlock(local.Index()) == b {
		return
	}
	c.SetBlock(local.Index(), b)
	for _, off := range local.FaceNeighbors() {
		if nc, ok := w.chunks[coord.Offset(off[0], off[1], off[2])]; ok {
			nc.InvalidateMesh()
		}
	}
}

// OptimizeAll rebuilds every chunk's storage down to its smallest
// variant. Intended for save points, not the hot path.
func (w *World) OptimizeAll() {
	for _, c := range w.chunks {
		c.Optimize()
	}
}

// MemoryUsage sums the block storage footprint of every materialized
// chunk and counts chunks per storage variant.
func (w *World) MemoryUsage() (total int, variants map[string]int) {
	variants = make(map[string]int, 5)
	for _, c := range w.chunks {
		n, kind := c.MemoryUsage()
		total += n
		variants[kind]++
	}
	return total, variants
}

// StartGenerationThreads launches n workers draining the generation
// queue. n <= 0 is a no-op, as is starting an already running world.
func (w *World) StartGenerationThreads(n int) {
	if n <= 0 || w.gen == nil {
		return
	}
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	w.quit = make(chan struct{})
	for i := 0; i < n; i++ {
		w.workers.Add(1)
		go w.generationWorker()
	}
	w.logger.Printf("started %d generation workers", n)
}

// StopGenerationThreads asks the workers to stop and waits for them.
// Queued coordinates stay queued; a restart picks them up.
func (w *World) StopGenerationThreads() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	close(w.quit)
	w.workers.Wait()
	w.logger.Printf("generation workers stopped")
}
