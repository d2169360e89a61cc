// regiondump inspects the region files of a world data directory:
// per-region chunk counts, compressed sizes, and the storage variant
// histogram after decoding.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"voxelforge/internal/persistence/region"
	"voxelforge/internal/voxel"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		decode  = flag.Bool("decode", true, "decode chunks and report storage variants")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[regiondump] ", log.LstdFlags)

	store, err := region.NewStore(filepath.Join(*dataDir, "world", "regions"))
	if err != nil {
		logger.Fatalf("open region store: %v", err)
	}
	defer store.Close()

	keys, err := store.Keys()
	if err != nil {
		logger.Fatalf("list regions: %v", err)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	if len(keys) == 0 {
		fmt.Println("no region files")
		return
	}

	totalChunks := 0
	totalVariants := map[string]int{}
	for _, k := range keys {
		payloads, err := store.ReadRegion(k)
		if err != nil {
			logger.Fatalf("read %s: %v", k.Filename(), err)
		}
		totalChunks += len(payloads)

		fi, _ := os.Stat(store.Path(k))
		var size int64
		if fi != nil {
			size = fi.Size()
		}

		if !*decode {
			fmt.Printf("%-24s chunks=%-5d bytes=%d\n", k.Filename(), len(payloads), size)
			continue
		}

		variants := map[string]int{}
		for coord, payload := range payloads {
			s, err := voxel.DecodeStorage(payload)
			if err != nil {
				logger.Fatalf("%s chunk %v: %v", k.Filename(), coord, err)
			}
			variants[s.Kind().String()]++
			totalVariants[s.Kind().String()]++
		}
		fmt.Printf("%-24s chunks=%-5d bytes=%-8d %v\n", k.Filename(), len(payloads), size, variants)
	}

	fmt.Printf("total: %d regions, %d chunks", len(keys), totalChunks)
	if *decode {
		fmt.Printf(", variants %v", totalVariants)
	}
	fmt.Println()
}
