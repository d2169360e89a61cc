package world

import (
	"container/heap"
	"sync"

	"voxelforge/internal/voxel"
)

type pendingChunk struct {
	coord  voxel.ChunkCoord
	distSq int64
}

// chunkQueue is the shared generation queue: a mutex-guarded min-heap
// keyed by squared distance to the streaming center, so workers always
// dispatch the nearest pending chunk first. The critical section is
// pop-and-release; generation itself runs unlocked.
type chunkQueue struct {
	mu    sync.Mutex
	items pendingHeap
}

func newChunkQueue() *chunkQueue {
	return &chunkQueue{items: make(pendingHeap, 0, 256)}
}

func (q *chunkQueue) Push(coord voxel.ChunkCoord, distSq int64) {
	q.mu.Lock()
	heap.Push(&q.items, pendingChunk{coord: coord, distSq: distSq})
	q.mu.Unlock()
}

func (q *chunkQueue) Pop() (pendingChunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return pendingChunk{}, false
	}
	return heap.Pop(&q.items).(pendingChunk), true
}

func (q *chunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type pendingHeap []pendingChunk

func (h pendingHeap) Len() int           { return len(h) }
func (h pendingHeap) Less(i, j int) bool { return h[i].distSq < h[j].distSq }
func (h pendingHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *pendingHeap) Push(x any)        { *h = append(*h, x.(pendingChunk)) }
func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
