package world

import (
	"fmt"
	"time"

	"voxelforge/internal/voxel"
)

// How long an idle worker sleeps before polling the queue again.
const workerIdleSleep = 5 * time.Millisecond

func (w *World) generationWorker() {
	defer w.workers.Done()
	for w.running.Load() {
		item, ok := w.queue.Pop()
		if !ok {
			time.Sleep(workerIdleSleep)
			continue
		}
		chunk, err := safeGenerate(w.gen, item.coord, w.seed)
		select {
		case w.results <- genResult{coord: item.coord, chunk: chunk, err: err}:
		case <-w.quit:
			return
		}
	}
}

// safeGenerate runs the generator with a recover so one bad coordinate
// cannot take a worker down. The failure surfaces as an error result
// and the world retries the coordinate on a later tick.
func safeGenerate(gen Generator, coord voxel.ChunkCoord, seed int64) (chunk *voxel.Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			chunk = nil
			err = fmt.Errorf("generator panic at %v: %v", coord, r)
		}
	}()
	chunk = gen(coord, seed)
	if chunk == nil {
		err = fmt.Errorf("generator returned nil chunk at %v", coord)
	}
	return chunk, err
}
