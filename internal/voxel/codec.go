package voxel

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Serialized layout, little-endian throughout:
//
//	[u8 tag][u8 palette_len][palette_len x 3-byte entries][payload]
//
// Uniform carries just the one block and no palette. Giant palettes can
// exceed 255 entries, so the Giant record alone uses a u16 length;
// Zigzag has no palette at all. A Sparse or Rle palette_len byte of 0
// means 256 (a palette of zero entries cannot occur in a valid record).
// RLE payload: u16 run count, then (run_length u8, palette_index u8)
// pairs; runs longer than 255 cells are split.
const (
	tagUniform = 0
	tagCompact = 1
	tagSparse  = 2
	tagGiant   = 3
	tagZigzag  = 4
	tagRle     = 5
)

var (
	ErrTruncated = errors.New("truncated input")
	ErrBadTag    = errors.New("unknown storage tag")
	ErrBadIndex  = errors.New("palette index out of range")
	ErrBadRuns   = errors.New("rle runs do not cover chunk")
)

type rleRun struct {
	length uint8 // 1..255
	index  uint8
}

// MarshalBinary serializes the storage, preferring the RLE transform
// when it is at least 10% smaller than the raw encoding.
func (s *BlockStorage) MarshalBinary() ([]byte, error) {
	if out, ok := s.rleEncoding(); ok {
		return out, nil
	}
	return s.rawEncoding(), nil
}

func (s *BlockStorage) rawEncoding() []byte {
	switch s.kind {
	case KindUniform:
		out := make([]byte, 0, 1+BlockBinarySize)
		out = append(out, tagUniform)
		return appendBlock(out, s.uniform)
	case KindCompact, KindSparse:
		tag := byte(tagCompact)
		if s.kind == KindSparse {
			tag = tagSparse
		}
		out := make([]byte, 0, 2+len(s.palette)*BlockBinarySize+len(s.indices))
		out = append(out, tag, byte(len(s.palette)))
		for _, b := range s.palette {
			out = appendBlock(out, b)
		}
		return append(out, s.indices...)
	case KindGiant:
		out := make([]byte, 0, 3+len(s.palette)*BlockBinarySize+len(s.indices))
		out = append(out, tagGiant)
		out = binary.LittleEndian.AppendUint16(out, uint16(len(s.palette)))
		for _, b := range s.palette {
			out = appendBlock(out, b)
		}
		return append(out, s.indices...)
	default: // Zigzag
		out := make([]byte, 0, 1+ChunkVolume*BlockBinarySize)
		out = append(out, tagZigzag)
		for _, b := range s.blocks {
			out = appendBlock(out, b)
		}
		return out
	}
}

func (s *BlockStorage) rawEncodedSize() int {
	switch s.kind {
	case KindUniform:
		return 1 + BlockBinarySize
	case KindCompact, KindSparse:
		return 2 + len(s.palette)*BlockBinarySize + len(s.indices)
	case KindGiant:
		return 3 + len(s.palette)*BlockBinarySize + len(s.indices)
	default:
		return 1 + ChunkVolume*BlockBinarySize
	}
}

// rleEncoding attempts the run-length transform. It applies only when
// the distinct-value count fits a one-byte palette index and the
// encoded form is materially (>=10%) smaller than the raw one.
func (s *BlockStorage) rleEncoding() ([]byte, bool) {
	palette := make([]Block, 0, compactPaletteCap)
	seen := make(map[Block]uint8, compactPaletteCap)
	var runs []rleRun

	cur := s.Get(0)
	curIdx := uint8(0)
	seen[cur] = 0
	palette = append(palette, cur)
	length := 1

	for i := 1; i < ChunkVolume; i++ {
		b := s.Get(i)
		if b == cur && length < 255 {
			length++
			continue
		}
		runs = append(runs, rleRun{length: uint8(length), index: curIdx})
		if b != cur {
			idx, ok := seen[b]
			if !ok {
				if len(palette) >= sparsePaletteCap {
					return nil, false
				}
				idx = uint8(len(palette))
				seen[b] = idx
				palette = append(palette, b)
			}
			cur, curIdx = b, idx
		}
		length = 1
	}
	runs = append(runs, rleRun{length: uint8(length), index: curIdx})

	size := 2 + len(palette)*BlockBinarySize + 2 + len(runs)*2
	if size*10 >= s.rawEncodedSize()*9 {
		return nil, false
	}

	out := make([]byte, 0, size)
	out = append(out, tagRle, byte(len(palette)))
	for _, b := range palette {
		out = appendBlock(out, b)
	}
	out = binary.LittleEndian.AppendUint16(out, uint16(len(runs)))
	for _, r := range runs {
		out = append(out, r.length, r.index)
	}
	return out, true
}

// DecodeStorage parses a serialized BlockStorage. Every length is
// validated before indexing; malformed input yields an error, never a
// panic.
func DecodeStorage(data []byte) (BlockStorage, error) {
	var zero BlockStorage
	if len(data) < 1 {
		return zero, fmt.Errorf("storage: %w: empty", ErrTruncated)
	}
	tag := data[0]
	body := data[1:]

	switch tag {
	case tagUniform:
		if len(body) < BlockBinarySize {
			return zero, fmt.Errorf("storage: %w: uniform block", ErrTruncated)
		}
		return UniformStorage(readBlock(body)), nil

	case tagCompact:
		palette, rest, err := readPalette(body, false)
		if err != nil {
			return zero, err
		}
		if len(palette) > compactPaletteCap {
			return zero, fmt.Errorf("storage: compact palette too large: %d", len(palette))
		}
		if len(rest) < compactIndexBytes {
			return zero, fmt.Errorf("storage: %w: compact indices", ErrTruncated)
		}
		indices := make([]byte, compactIndexBytes)
		copy(indices, rest)
		for i := 0; i < ChunkVolume; i++ {
			if int(GetCompactIndex(indices, i)) >= len(palette) {
				return zero, fmt.Errorf("storage: %w: cell %d", ErrBadIndex, i)
			}
		}
		return BlockStorage{kind: KindCompact, palette: palette, indices: indices}, nil

	case tagSparse:
		palette, rest, err := readPalette(body, true)
		if err != nil {
			return zero, err
		}
		if len(rest) < sparseIndexBytes {
			return zero, fmt.Errorf("storage: %w: sparse indices", ErrTruncated)
		}
		indices := make([]byte, sparseIndexBytes)
		copy(indices, rest)
		for i, idx := range indices {
			if int(idx) >= len(palette) {
				return zero, fmt.Errorf("storage: %w: cell %d", ErrBadIndex, i)
			}
		}
		return BlockStorage{kind: KindSparse, palette: palette, indices: indices}, nil

	case tagGiant:
		if len(body) < 2 {
			return zero, fmt.Errorf("storage: %w: giant palette length", ErrTruncated)
		}
		n := int(binary.LittleEndian.Uint16(body))
		body = body[2:]
		if n == 0 || n > giantPaletteCap {
			return zero, fmt.Errorf("storage: giant palette length %d out of range", n)
		}
		if len(body) < n*BlockBinarySize {
			return zero, fmt.Errorf("storage: %w: giant palette", ErrTruncated)
		}
		palette := make([]Block, n)
		for i := range palette {
			palette[i] = readBlock(body[i*BlockBinarySize:])
		}
		rest := body[n*BlockBinarySize:]
		if len(rest) < giantIndexBytes {
			return zero, fmt.Errorf("storage: %w: giant indices", ErrTruncated)
		}
		indices := make([]byte, giantIndexBytes)
		copy(indices, rest)
		for i := 0; i < ChunkVolume; i++ {
			if int(GetGiantIndex(indices, i)) >= n {
				return zero, fmt.Errorf("storage: %w: cell %d", ErrBadIndex, i)
			}
		}
		return BlockStorage{kind: KindGiant, palette: palette, indices: indices}, nil

	case tagZigzag:
		if len(body) < ChunkVolume*BlockBinarySize {
			return zero, fmt.Errorf("storage: %w: zigzag blocks", ErrTruncated)
		}
		blocks := make([]Block, ChunkVolume)
		for i := range blocks {
			blocks[i] = readBlock(body[i*BlockBinarySize:])
		}
		return BlockStorage{kind: KindZigzag, blocks: blocks}, nil

	case tagRle:
		return decodeRle(body)

	default:
		return zero, fmt.Errorf("storage: %w: %d", ErrBadTag, tag)
	}
}

// readPalette parses the u8 palette length and entries. With wide=true
// a length byte of 0 decodes as 256.
func readPalette(body []byte, wide bool) ([]Block, []byte, error) {
	if len(body) < 1 {
		return nil, nil, fmt.Errorf("storage: %w: palette length", ErrTruncated)
	}
	n := int(body[0])
	if n == 0 {
		if !wide {
			return nil, nil, fmt.Errorf("storage: empty palette")
		}
		n = 256
	}
	body = body[1:]
	if len(body) < n*BlockBinarySize {
		return nil, nil, fmt.Errorf("storage: %w: palette entries", ErrTruncated)
	}
	palette := make([]Block, n)
	for i := range palette {
		palette[i] = readBlock(body[i*BlockBinarySize:])
	}
	return palette, body[n*BlockBinarySize:], nil
}

// decodeRle expands a run-length record into the smallest adequate
// in-memory encoding; RLE is a wire form only.
func decodeRle(body []byte) (BlockStorage, error) {
	var zero BlockStorage
	palette, rest, err := readPalette(body, true)
	if err != nil {
		return zero, err
	}
	if len(rest) < 2 {
		return zero, fmt.Errorf("storage: %w: run count", ErrTruncated)
	}
	count := int(binary.LittleEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) < count*2 {
		return zero, fmt.Errorf("storage: %w: runs", ErrTruncated)
	}

	cells := make([]uint8, 0, ChunkVolume)
	for r := 0; r < count; r++ {
		length := int(rest[r*2])
		idx := rest[r*2+1]
		if length == 0 {
			return zero, fmt.Errorf("storage: %w: zero-length run %d", ErrBadRuns, r)
		}
		if int(idx) >= len(palette) {
			return zero, fmt.Errorf("storage: %w: run %d", ErrBadIndex, r)
		}
		if len(cells)+length > ChunkVolume {
			return zero, fmt.Errorf("storage: %w: %d cells", ErrBadRuns, len(cells)+length)
		}
		for j := 0; j < length; j++ {
			cells = append(cells, idx)
		}
	}
	if len(cells) != ChunkVolume {
		return zero, fmt.Errorf("storage: %w: %d cells", ErrBadRuns, len(cells))
	}

	switch {
	case len(palette) == 1:
		return UniformStorage(palette[0]), nil
	case len(palette) <= compactPaletteCap:
		indices := make([]byte, compactIndexBytes)
		for i, idx := range cells {
			SetCompactIndex(indices, i, idx)
		}
		return BlockStorage{kind: KindCompact, palette: palette, indices: indices}, nil
	default:
		return BlockStorage{kind: KindSparse, palette: palette, indices: cells}, nil
	}
}
