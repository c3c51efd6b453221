package storage

import "github.com/kelindar/bitmap"

// ReservedColumn names the K=4 metadata columns every page carries in
// addition to its num_columns data columns.
type ReservedColumn int

const (
	ColIndirection ReservedColumn = iota
	ColSchemaEncoding
	ColRID
	ColTimestamp
	NumReservedColumns = int(ColTimestamp) + 1
)

// ReservedIndex returns the column index of a reserved column within a
// page that stores numColumns data columns.
func ReservedIndex(numColumns int, rc ReservedColumn) int {
	return numColumns + int(rc)
}

// SchemaEncoding is the per-record bitvector marking which data columns
// have ever been written by an update. It is stored as a single int64
// in the schema_encoding reserved column and wrapped here as a
// one-word github.com/kelindar/bitmap.Bitmap, the same bitmap
// vocabulary a columnar engine's per-chunk index/dirty bitmaps use for
// this kind of "which slots changed" bookkeeping.
type SchemaEncoding uint64

// Get reports whether column i has ever been updated.
func (s SchemaEncoding) Get(i int) bool {
	bm := bitmap.Bitmap{uint64(s)}
	return bm.Contains(uint32(i))
}

// Set returns a copy of s with column i marked updated (or cleared, for
// completeness, though the engine never clears a schema bit once set).
func (s SchemaEncoding) Set(i int, updated bool) SchemaEncoding {
	bm := bitmap.Bitmap{uint64(s)}
	if updated {
		bm.Set(uint32(i))
	} else {
		bm[0] &^= 1 << uint(i)
	}
	return SchemaEncoding(bm[0])
}

// occupancyBitmap tracks which of the config.RecordsPerPage slots in a
// page are occupied. Backed by github.com/kelindar/bitmap rather than a
// hand-rolled []bool.
type occupancyBitmap struct {
	bm bitmap.Bitmap
}

func newOccupancyBitmap(words int) *occupancyBitmap {
	return &occupancyBitmap{bm: make(bitmap.Bitmap, words)}
}

func (o *occupancyBitmap) set(slot int64) {
	o.bm.Set(uint32(slot))
}

func (o *occupancyBitmap) clear(slot int64) {
	word := slot / 64
	if int(word) >= len(o.bm) {
		return
	}
	o.bm[word] &^= 1 << uint(slot%64)
}

func (o *occupancyBitmap) contains(slot int64) bool {
	return o.bm.Contains(uint32(slot))
}

// words returns the bitmap's backing uint64 words, for serialization
// into the page's metadata blob.
func (o *occupancyBitmap) words() []uint64 {
	return []uint64(o.bm)
}

func occupancyFromWords(words []uint64) *occupancyBitmap {
	bm := make(bitmap.Bitmap, len(words))
	copy(bm, words)
	return &occupancyBitmap{bm: bm}
}
