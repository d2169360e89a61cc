package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelforge/internal/persistence/region"
)

// SQLiteIndex is a secondary index over the region files on disk: which
// regions exist, their digests, and the history of full saves. Writes
// go through a single goroutine; the region files remain the source of
// truth, so a dropped index write is acceptable.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqRegion reqKind = iota + 1
	reqSave
	reqSync
)

type req struct {
	kind   reqKind
	region regionRow
	save   SaveRow
	done   chan struct{}
}

type regionRow struct {
	Tick    uint64
	Info    region.Info
	SavedAt string
}

// SaveRow summarizes one full world save.
type SaveRow struct {
	Tick       uint64
	Regions    int
	Chunks     int
	Bytes      int
	RecordedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Room for one full save burst (every region row plus the save
		// row) without stalling the tick loop.
		ch: make(chan req, 8192),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads. NORMAL is a decent
	// durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS regions (
			rx INTEGER NOT NULL,
			ry INTEGER NOT NULL,
			rz INTEGER NOT NULL,
			path TEXT NOT NULL,
			chunks INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			digest TEXT NOT NULL,
			tick INTEGER NOT NULL,
			saved_at TEXT NOT NULL,
			PRIMARY KEY (rx, ry, rz)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_regions_tick ON regions(tick);`,
		`CREATE TABLE IF NOT EXISTS saves (
			tick INTEGER PRIMARY KEY,
			regions INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordRegion enqueues one written region file. Non-blocking: if the
// indexer falls behind the row is dropped.
func (s *SQLiteIndex) RecordRegion(tick uint64, info region.Info) {
	if s == nil || s.closed.Load() {
		return
	}
	r := regionRow{
		Tick:    tick,
		Info:    info,
		SavedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqRegion, region: r}:
	default:
	}
}

// RecordSave enqueues the summary row of a full save.
func (s *SQLiteIndex) RecordSave(tick uint64, infos []region.Info) {
	if s == nil || s.closed.Load() {
		return
	}
	row := SaveRow{
		Tick:       tick,
		Regions:    len(infos),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, info := range infos {
		row.Chunks += info.Chunks
		row.Bytes += info.Bytes
	}
	select {
	case s.ch <- req{kind: reqSave, save: row}:
	default:
	}
}

// Flush blocks until every row enqueued before it has been committed.
// Intended for tests and shutdown.
func (s *SQLiteIndex) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqSync, done: done}
	<-done
}

// LatestSave reads the most recent save summary. sql.ErrNoRows when no
// save was recorded yet.
func (s *SQLiteIndex) LatestSave() (SaveRow, error) {
	var row SaveRow
	err := s.db.QueryRow(
		`SELECT tick, regions, chunks, bytes, recorded_at FROM saves ORDER BY tick DESC LIMIT 1`,
	).Scan(&row.Tick, &row.Regions, &row.Chunks, &row.Bytes, &row.RecordedAt)
	return row, err
}

// RegionCount reads the number of indexed regions.
func (s *SQLiteIndex) RegionCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM regions`).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRegion, _ := s.db.Prepare(`INSERT OR REPLACE INTO regions(rx,ry,rz,path,chunks,bytes,digest,tick,saved_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSave, _ := s.db.Prepare(`INSERT OR REPLACE INTO saves(tick,regions,chunks,bytes,recorded_at) VALUES(?,?,?,?,?)`)
	defer func() {
		if insertRegion != nil {
			_ = insertRegion.Close()
		}
		if insertSave != nil {
			_ = insertSave.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRegion:
			if insertRegion == nil {
				continue
			}
			info := r.region.Info
			if _, err := tx.Stmt(insertRegion).Exec(
				info.Key.X, info.Key.Y, info.Key.Z,
				info.Path,
				info.Chunks,
				info.Bytes,
				info.Digest,
				int64(r.region.Tick),
				r.region.SavedAt,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqSave:
			if insertSave == nil {
				continue
			}
			sv := r.save
			if _, err := tx.Stmt(insertSave).Exec(
				int64(sv.Tick),
				sv.Regions,
				sv.Chunks,
				sv.Bytes,
				sv.RecordedAt,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || len(s.ch) == 0 || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
