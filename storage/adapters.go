package storage

import (
	"fmt"
	"time"

	"github.com/kestrelcol/lstore/rid"
)

// BasePage is a thin adapter over the buffer pool that knows its own
// page path and column count, exposing the full metadata surface a
// base record carries.
type BasePage struct {
	pool       *BufferPool
	path       string
	numColumns int
}

// NewBasePage returns an adapter for the base page at path.
func NewBasePage(pool *BufferPool, path string, numColumns int) *BasePage {
	return &BasePage{pool: pool, path: path, numColumns: numColumns}
}

// Insert writes a brand-new base record: columns, indirection=0,
// schema_encoding=0, rid=id, timestamp=now.
func (p *BasePage) Insert(id rid.ID, slot int64, columns []int64) error {
	if len(columns) != p.numColumns {
		return fmt.Errorf("storage: base insert arity %d, want %d", len(columns), p.numColumns)
	}
	values := make(map[int]int64, p.numColumns+NumReservedColumns)
	for i, v := range columns {
		values[i] = v
	}
	values[ReservedIndex(p.numColumns, ColIndirection)] = 0
	values[ReservedIndex(p.numColumns, ColSchemaEncoding)] = 0
	values[ReservedIndex(p.numColumns, ColRID)] = int64(id)
	values[ReservedIndex(p.numColumns, ColTimestamp)] = time.Now().UnixNano()
	_, err := p.pool.InsertRecord(p.path, slot, values)
	return err
}

// Column reads data column i at slot.
func (p *BasePage) Column(slot int64, i int) (int64, error) {
	return p.pool.GetRecordEntry(p.path, slot, i)
}

// Indirection returns the TID of the most recent tail version, or 0.
func (p *BasePage) Indirection(slot int64) (rid.ID, error) {
	return p.pool.GetIndirectionTID(p.path, slot, p.numColumns)
}

// SetIndirection overwrites the indirection pointer for slot.
func (p *BasePage) SetIndirection(slot int64, tid rid.ID) error {
	return p.pool.SetIndirectionTID(p.path, slot, p.numColumns, tid)
}

// SchemaEncoding returns the per-record updated-columns bitvector.
func (p *BasePage) SchemaEncoding(slot int64) (SchemaEncoding, error) {
	return p.pool.GetSchemaEncoding(p.path, slot, p.numColumns)
}

// SetSchemaEncoding overwrites the schema-encoding bitvector for slot.
func (p *BasePage) SetSchemaEncoding(slot int64, enc SchemaEncoding) error {
	return p.pool.SetSchemaEncoding(p.path, slot, p.numColumns, enc)
}

// IsOccupied reports whether slot currently holds a live base record.
func (p *BasePage) IsOccupied(slot int64) (bool, error) {
	return p.pool.IsOccupied(p.path, slot)
}

// Delete clears the base slot's occupancy bit, marking it logically
// deleted without disturbing its stored column values.
func (p *BasePage) Delete(slot int64) error {
	return p.pool.ClearOccupied(p.path, slot)
}

// --------------------------- TailPage ----------------------------

// TailPage is a thin adapter over the buffer pool for a page range's
// append-only tail pages.
type TailPage struct {
	pool       *BufferPool
	path       string
	numColumns int
}

// NewTailPage returns an adapter for the tail page at path.
func NewTailPage(pool *BufferPool, path string, numColumns int) *TailPage {
	return &TailPage{pool: pool, path: path, numColumns: numColumns}
}

// Insert appends a tail record: merged columns (with config.NullValue
// marking untouched positions is the caller's concern, not this
// adapter's), indirection pointing at the previous tail version,
// storedRID (the base RID, or its negation for a tombstone), and now.
func (p *TailPage) Insert(tid rid.ID, slot int64, columns []int64, indirection rid.ID, storedRID int64) error {
	if len(columns) != p.numColumns {
		return fmt.Errorf("storage: tail insert arity %d, want %d", len(columns), p.numColumns)
	}
	values := make(map[int]int64, p.numColumns+NumReservedColumns)
	for i, v := range columns {
		values[i] = v
	}
	values[ReservedIndex(p.numColumns, ColIndirection)] = int64(indirection)
	values[ReservedIndex(p.numColumns, ColSchemaEncoding)] = 0
	values[ReservedIndex(p.numColumns, ColRID)] = storedRID
	values[ReservedIndex(p.numColumns, ColTimestamp)] = time.Now().UnixNano()
	_, err := p.pool.InsertRecord(p.path, slot, values)
	return err
}

// Column reads data column i at slot.
func (p *TailPage) Column(slot int64, i int) (int64, error) {
	return p.pool.GetRecordEntry(p.path, slot, i)
}

// Indirection returns the previous (older) TID in the version chain,
// or 0 if this is the oldest tail version.
func (p *TailPage) Indirection(slot int64) (rid.ID, error) {
	return p.pool.GetIndirectionTID(p.path, slot, p.numColumns)
}

// StoredRID returns the rid reserved column (negative for a tombstone).
func (p *TailPage) StoredRID(slot int64) (int64, error) {
	return p.pool.GetRecordEntry(p.path, slot, ReservedIndex(p.numColumns, ColRID))
}
