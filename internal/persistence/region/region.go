package region

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"voxelforge/internal/mathx"
	"voxelforge/internal/voxel"
)

// Size is the region edge length in chunks. One region file holds up to
// Size^3 chunk records.
const Size = 32

// Key identifies one region file.
type Key struct {
	X, Y, Z int32
}

// KeyFor maps a chunk coordinate to its region. Floor division, so
// negative chunks group into negative regions.
func KeyFor(coord voxel.ChunkCoord) Key {
	x, y, z := coord.Unpack()
	return Key{
		X: int32(mathx.FloorDiv(int(x), Size)),
		Y: int32(mathx.FloorDiv(int(y), Size)),
		Z: int32(mathx.FloorDiv(int(z), Size)),
	}
}

func (k Key) Filename() string {
	return fmt.Sprintf("r.%d.%d.%d.dat", k.X, k.Y, k.Z)
}

// ParseFilename inverts Filename.
func ParseFilename(name string) (Key, bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 5 || parts[0] != "r" || parts[4] != "dat" {
		return Key{}, false
	}
	var out [3]int32
	for i, p := range parts[1:4] {
		v, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return Key{}, false
		}
		out[i] = int32(v)
	}
	return Key{X: out[0], Y: out[1], Z: out[2]}, true
}

var ErrTruncated = errors.New("region: truncated record")

// Record framing inside a region file, after zstd decompression:
// repeated [u64 chunk coord][u32 payload length][payload], all
// little-endian. Records are sorted by coordinate so identical content
// produces identical files.
const recordHeaderSize = 12

// Info describes one written region file.
type Info struct {
	Key    Key
	Path   string
	Chunks int
	Bytes  int    // compressed file size
	Digest string // sha256 of the uncompressed record stream
}

// Store reads and writes region files under a single directory.
type Store struct {
	dir string
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("region: empty store dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, enc: enc, dec: dec}, nil
}

func (s *Store) Close() error {
	s.dec.Close()
	return s.enc.Close()
}

func (s *Store) Path(k Key) string {
	return filepath.Join(s.dir, k.Filename())
}

// Keys lists the regions present on disk.
func (s *Store) Keys() ([]Key, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var keys []Key
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if k, ok := ParseFilename(e.Name()); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// WriteRegion writes one region file atomically: the record stream is
// built and hashed in memory, compressed, written to a temp file and
// renamed into place.
func (s *Store) WriteRegion(k Key, chunks map[voxel.ChunkCoord][]byte) (Info, error) {
	coords := make([]voxel.ChunkCoord, 0, len(chunks))
	for c := range chunks {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool { return coords[i] < coords[j] })

	var raw []byte
	var hdr [recordHeaderSize]byte
	for _, c := range coords {
		payload := chunks[c]
		binary.LittleEndian.PutUint64(hdr[0:8], uint64(c))
		binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(payload)))
		raw = append(raw, hdr[:]...)
		raw = append(raw, payload...)
	}
	sum := sha256.Sum256(raw)
	compressed := s.enc.EncodeAll(raw, nil)

	path := s.Path(k)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return Info{}, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return Info{}, err
	}
	return Info{
		Key:    k,
		Path:   path,
		Chunks: len(coords),
		Bytes:  len(compressed),
		Digest: hex.EncodeToString(sum[:]),
	}, nil
}

// ReadRegion loads one region file into per-chunk payloads.
func (s *Store) ReadRegion(k Key) (map[voxel.ChunkCoord][]byte, error) {
	compressed, err := os.ReadFile(s.Path(k))
	if err != nil {
		return nil, err
	}
	raw, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", k.Filename(), err)
	}
	out := make(map[voxel.ChunkCoord][]byte)
	for len(raw) > 0 {
		if len(raw) < recordHeaderSize {
			return nil, fmt.Errorf("region %s: %w", k.Filename(), ErrTruncated)
		}
		coord := voxel.ChunkCoord(binary.LittleEndian.Uint64(raw[0:8]))
		n := int(binary.LittleEndian.Uint32(raw[8:12]))
		raw = raw[recordHeaderSize:]
		if len(raw) < n {
			return nil, fmt.Errorf("region %s: %w", k.Filename(), ErrTruncated)
		}
		out[coord] = raw[:n:n]
		raw = raw[n:]
	}
	return out, nil
}

// ChunkSource is the slice of the world the store needs for a save.
type ChunkSource interface {
	EachChunk(fn func(voxel.ChunkCoord, *voxel.Chunk) bool)
}

// SaveAll serializes every chunk in src grouped by region and writes
// each region file. Returns one Info per written region.
func (s *Store) SaveAll(src ChunkSource) ([]Info, error) {
	grouped := make(map[Key]map[voxel.ChunkCoord][]byte)
	var encErr error
	src.EachChunk(func(coord voxel.ChunkCoord, c *voxel.Chunk) bool {
		payload, err := c.MarshalBinary()
		if err != nil {
			encErr = fmt.Errorf("encode %v: %w", coord, err)
			return false
		}
		k := KeyFor(coord)
		m := grouped[k]
		if m == nil {
			m = make(map[voxel.ChunkCoord][]byte)
			grouped[k] = m
		}
		m[coord] = payload
		return true
	})
	if encErr != nil {
		return nil, encErr
	}

	keys := make([]Key, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
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

	infos := make([]Info, 0, len(keys))
	for _, k := range keys {
		info, err := s.WriteRegion(k, grouped[k])
		if err != nil {
			return infos, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// LoadAll decodes every region file in the store into chunks.
func (s *Store) LoadAll() (map[voxel.ChunkCoord]*voxel.Chunk, error) {
	keys, err := s.Keys()
	if err != nil {
		return nil, err
	}
	out := make(map[voxel.ChunkCoord]*voxel.Chunk)
	for _, k := range keys {
		payloads, err := s.ReadRegion(k)
		if err != nil {
			return nil, err
		}
		for coord, payload := range payloads {
			var c voxel.Chunk
			if err := c.UnmarshalBinary(payload); err != nil {
				return nil, fmt.Errorf("region %s chunk %v: %w", k.Filename(), coord, err)
			}
			out[coord] = &c
		}
	}
	return out, nil
}
