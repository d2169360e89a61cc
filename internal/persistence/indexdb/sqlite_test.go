package indexdb

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"voxelforge/internal/persistence/region"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSQLiteIndex_RecordAndQuery(t *testing.T) {
	idx := openTestIndex(t)

	infos := []region.Info{
		{Key: region.Key{X: 0, Y: 0, Z: 0}, Path: "r.0.0.0.dat", Chunks: 10, Bytes: 1000, Digest: "aa"},
		{Key: region.Key{X: -1, Y: 0, Z: 2}, Path: "r.-1.0.2.dat", Chunks: 5, Bytes: 600, Digest: "bb"},
	}
	for _, info := range infos {
		idx.RecordRegion(42, info)
	}
	idx.RecordSave(42, infos)
	idx.Flush()

	n, err := idx.RegionCount()
	if err != nil {
		t.Fatalf("region count: %v", err)
	}
	if n != 2 {
		t.Fatalf("region count: %d want 2", n)
	}

	save, err := idx.LatestSave()
	if err != nil {
		t.Fatalf("latest save: %v", err)
	}
	if save.Tick != 42 || save.Regions != 2 || save.Chunks != 15 || save.Bytes != 1600 {
		t.Fatalf("save row: %+v", save)
	}
}

func TestSQLiteIndex_RewriteReplacesRegionRow(t *testing.T) {
	idx := openTestIndex(t)

	k := region.Key{X: 1, Y: 1, Z: 1}
	idx.RecordRegion(1, region.Info{Key: k, Path: "p", Chunks: 1, Bytes: 10, Digest: "old"})
	idx.RecordRegion(2, region.Info{Key: k, Path: "p", Chunks: 2, Bytes: 20, Digest: "new"})
	idx.Flush()

	n, err := idx.RegionCount()
	if err != nil {
		t.Fatalf("region count: %v", err)
	}
	if n != 1 {
		t.Fatalf("region count after rewrite: %d want 1", n)
	}

	var digest string
	var chunks int
	err = idx.db.QueryRow(`SELECT digest, chunks FROM regions WHERE rx=1 AND ry=1 AND rz=1`).Scan(&digest, &chunks)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if digest != "new" || chunks != 2 {
		t.Fatalf("row not replaced: digest=%s chunks=%d", digest, chunks)
	}
}

func TestSQLiteIndex_LatestSaveEmpty(t *testing.T) {
	idx := openTestIndex(t)
	if _, err := idx.LatestSave(); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("got %v want sql.ErrNoRows", err)
	}
}

func TestSQLiteIndex_CloseIsIdempotentAndDropsLateWrites(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	// Must not panic on a closed channel.
	idx.RecordRegion(1, region.Info{})
	idx.RecordSave(1, nil)
}
