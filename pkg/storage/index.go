package storage

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/tileforge/tileserv/pkg/errors"
)

// indexRecordSize is one (offset, size) pair: uint64 + uint32, little endian.
const indexRecordSize = 12

// SlabIndex is the resolved index metadata for one slab: the byte offset and
// length of every tile it contains. It is the value stored in the index
// cache and is immutable once resolved.
type SlabIndex struct {
	Offsets []uint64
	Sizes   []uint32
}

// TileCount returns the number of tiles indexed.
func (s *SlabIndex) TileCount() int {
	return len(s.Offsets)
}

// Tile returns the offset and size of tile i. A tile with size zero is a
// nodata tile that was never written.
func (s *SlabIndex) Tile(i int) (uint64, uint32, error) {
	if i < 0 || i >= len(s.Offsets) {
		return 0, 0, errors.Newf(errors.ErrorTypeValidation,
			"tile %d out of range [0,%d)", i, len(s.Offsets))
	}
	return s.Offsets[i], s.Sizes[i], nil
}

// ParseSlabIndex decodes the fixed-width index header read from the head of
// a slab: a sequence of little-endian (uint64 offset, uint32 size) records.
func ParseSlabIndex(data []byte) (*SlabIndex, error) {
	if len(data)%indexRecordSize != 0 {
		return nil, errors.Newf(errors.ErrorTypeStorage,
			"slab index length %d is not a multiple of %d", len(data), indexRecordSize)
	}

	n := len(data) / indexRecordSize
	idx := &SlabIndex{
		Offsets: make([]uint64, n),
		Sizes:   make([]uint32, n),
	}
	for i := 0; i < n; i++ {
		rec := data[i*indexRecordSize:]
		idx.Offsets[i] = binary.LittleEndian.Uint64(rec)
		idx.Sizes[i] = binary.LittleEndian.Uint32(rec[8:])
	}
	return idx, nil
}

// IndexKey derives the deterministic cache key for a slab index from the
// backend descriptor and the slab path. Equal inputs always yield equal
// keys. The location and path are separated by a NUL byte, which cannot
// appear in either, so distinct (location, path) pairs never collide even
// when their concatenations match.
func IndexKey(desc Descriptor, slabPath string) string {
	slabPath = strings.TrimPrefix(slabPath, "/")

	var b strings.Builder
	b.Grow(len(desc.Kind) + len(desc.Location) + len(slabPath) + 4)
	b.WriteString(string(desc.Kind))
	b.WriteString("://")
	b.WriteString(desc.Location)
	b.WriteByte(0)
	b.WriteString(slabPath)
	return b.String()
}

// TileIndexKey derives a cache key for a single tile position inside a
// slab, used when callers cache at tile rather than slab granularity.
func TileIndexKey(desc Descriptor, slabPath string, tile int) string {
	return IndexKey(desc, slabPath) + "#" + strconv.Itoa(tile)
}
