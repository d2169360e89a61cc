package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelforge/internal/observerproto"
	"voxelforge/internal/persistence/indexdb"
	persistlog "voxelforge/internal/persistence/log"
	"voxelforge/internal/persistence/mirror"
	"voxelforge/internal/persistence/region"
	"voxelforge/internal/transport/observer"
	"voxelforge/internal/tuning"
	"voxelforge/internal/voxel"
	"voxelforge/internal/world"
	"voxelforge/internal/world/gen"
)

func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		seed       = flag.Int64("seed", 0, "world seed (overrides tuning when nonzero)")
		workers    = flag.Int("workers", 0, "generation workers (overrides tuning when nonzero)")
		radius     = flag.Float64("radius", 0, "streaming radius in chunks (overrides tuning when nonzero)")
		obsAddr    = flag.String("observer", "", "observer websocket listen address (overrides tuning when set)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite region index")
		resume     = flag.Bool("resume", true, "load existing region files from the data dir")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[worldserver] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	if *workers > 0 {
		tune.GenWorkers = *workers
	}
	if *radius > 0 {
		tune.StreamRadius = *radius
	}
	if strings.TrimSpace(*obsAddr) != "" {
		tune.ObserverAddr = strings.TrimSpace(*obsAddr)
	}
	if strings.TrimSpace(*dataDir) != "" {
		tune.DataDir = strings.TrimSpace(*dataDir)
	}

	worldDir := filepath.Join(tune.DataDir, "world")
	_ = os.MkdirAll(worldDir, 0o755)

	store, err := region.NewStore(filepath.Join(worldDir, "regions"))
	if err != nil {
		logger.Fatalf("open region store: %v", err)
	}
	defer store.Close()

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if row, err := idx.LatestSave(); err == nil {
			logger.Printf("last save tick=%d regions=%d chunks=%d at=%s", row.Tick, row.Regions, row.Chunks, row.RecordedAt)
		} else if !errors.Is(err, sql.ErrNoRows) {
			logger.Printf("index: latest save: %v", err)
		}
	}

	streamLog := persistlog.NewStreamLogger(worldDir)
	defer streamLog.Close()

	mir, err := buildMirror(logger)
	if err != nil {
		logger.Fatalf("init mirror: %v", err)
	}
	defer mir.Close()

	w := world.New(world.Options{
		Seed:     tune.Seed,
		Generate: gen.New(tune.BiomeRegionSize),
		Logger:   logger,
		Events:   streamLog,
	})

	if *resume {
		chunks, err := store.LoadAll()
		if err != nil {
			logger.Fatalf("load regions: %v", err)
		}
		if len(chunks) > 0 {
			w.Restore(chunks)
			logger.Printf("resumed %d chunks from region files", len(chunks))
		}
	}

	obs := observer.NewServer(logger)
	httpSrv := &http.Server{Addr: tune.ObserverAddr, Handler: observerMux(obs)}
	go func() {
		logger.Printf("observer listening on %s", tune.ObserverAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("observer server: %v", err)
		}
	}()

	w.StartGenerationThreads(tune.GenWorkers)
	logger.Printf("world seed=%d radius=%.1f workers=%d", tune.Seed, tune.StreamRadius, tune.GenWorkers)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	tickDur := time.Second / time.Duration(tune.TickRateHz)
	if tune.TickDurationMs > 0 {
		tickDur = time.Duration(tune.TickDurationMs) * time.Millisecond
	}
	ticker := time.NewTicker(tickDur)
	defer ticker.Stop()

	center := voxel.Vec3{}

loop:
	for {
		select {
		case <-stop:
			logger.Printf("shutdown signal")
			break loop
		case <-ticker.C:
			if pos, ok := obs.Viewpoint(); ok {
				center = voxel.Vec3{X: pos[0], Y: pos[1], Z: pos[2]}
			}
			w.UpdateLoadedChunks(center, tune.StreamRadius)

			tick := w.CurrentTick()
			if tune.SaveEveryTicks > 0 && tick%uint64(tune.SaveEveryTicks) == 0 {
				saveWorld(w, store, idx, mir, logger)
			}
			// Each subscriber picks its own cadence; the server
			// drops ticks nobody asked for.
			if obs.SubscriberCount() > 0 {
				publishStats(obs, w, center)
			}
		}
	}

	w.StopGenerationThreads()
	saveWorld(w, store, idx, mir, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	logger.Printf("bye tick=%d chunks=%d", w.CurrentTick(), w.ChunkCount())
}

func observerMux(obs *observer.Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observer", obs.WSHandler())
	return mux
}

func saveWorld(w *world.World, store *region.Store, idx *indexdb.SQLiteIndex, mir *mirror.Mirror, logger *log.Logger) {
	start := time.Now()
	w.OptimizeAll()
	infos, err := store.SaveAll(w)
	if err != nil {
		logger.Printf("save: %v", err)
		return
	}
	chunks := 0
	for _, info := range infos {
		chunks += info.Chunks
		if idx != nil {
			idx.RecordRegion(w.CurrentTick(), info)
		}
		mir.EnqueueRegion(info)
	}
	if idx != nil {
		idx.RecordSave(w.CurrentTick(), infos)
	}
	logger.Printf("saved %d chunks in %d regions (%s)", chunks, len(infos), time.Since(start).Round(time.Millisecond))
}

func publishStats(obs *observer.Server, w *world.World, center voxel.Vec3) {
	bytes, variants := w.MemoryUsage()
	obs.Publish(observerproto.StatsMsg{
		Tick:         w.CurrentTick(),
		Seed:         w.Seed(),
		Viewpoint:    [3]float64{center.X, center.Y, center.Z},
		Loaded:       w.LoadedCount(),
		Pending:      w.PendingCount(),
		QueueLen:     w.QueueLen(),
		Chunks:       w.ChunkCount(),
		StorageBytes: bytes,
		Variants:     variants,
	})
}
