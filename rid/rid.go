// Package rid implements the RID/TID addressing scheme: a single 64-bit
// integer that locates a record version, plus the pure arithmetic that
// derives page-range, page and slot indices from it.
//
// RID and TID share a numbering scheme only by convention in the system
// they model, which risks aliasing a base record and a tail version
// that happen to carry the same counter; this implementation tags
// every ID with a 1-bit base/tail discriminator in the high bit of the
// stored int64, leaving 63 bits for the counter.
package rid

import (
	"fmt"
	"math"

	"github.com/kestrelcol/lstore/config"
)

// tailBit is bit 63 of the stored int64 (math.MinInt64 has only that bit set).
const tailBit int64 = math.MinInt64

// ID is a boxed record/tail identifier. The zero value is not a valid ID
// (counters start at 1); ID behaves identically whether passed by value
// or stored in a slice.
type ID int64

// NewBase constructs a base-record identifier from its 1-based counter.
func NewBase(counter int64) ID {
	return ID(counter)
}

// NewTail constructs a tail-record identifier from its 1-based counter.
func NewTail(counter int64) ID {
	return ID(counter | tailBit)
}

// IsTail reports whether id addresses a tail record.
func (id ID) IsTail() bool {
	return int64(id)&tailBit != 0
}

// IsZero reports whether id is the unset/no-indirection sentinel.
func (id ID) IsZero() bool {
	return id == 0
}

// Counter returns the 1-based counter portion of id, stripped of its
// discriminator bit.
func (id ID) Counter() int64 {
	return int64(id) &^ tailBit
}

// Locator is the (page_range, page, slot) triple an ID resolves to.
type Locator struct {
	PageRangeIndex int64
	PageIndex      int64
	SlotIndex      int64
}

// LocateBase derives (page_range_index, base_page_index, slot_index) for a
// base RID:
//
//	page_range_index = (n-1) / (R*B)
//	base_page_index  = ((n-1) / R) mod B
//	slot_index       = (n-1) mod R
func LocateBase(n int64) Locator {
	if n <= 0 {
		panic(fmt.Sprintf("rid: LocateBase requires n >= 1, got %d", n))
	}
	zero := n - 1
	r := int64(config.RecordsPerPage)
	b := int64(config.BasePagesPerRange)
	return Locator{
		PageRangeIndex: zero / (r * b),
		PageIndex:      (zero / r) % b,
		SlotIndex:      zero % r,
	}
}

// LocateTail derives (tail_page_index, slot_index) for a TID *within its
// own page range*; page-range membership for a TID is tracked by the
// owning PageRange, not derived arithmetically, since tail pages are
// unbounded and not partitioned by a fixed B.
func LocateTail(n int64) (tailPageIndex, slotIndex int64) {
	if n <= 0 {
		panic(fmt.Sprintf("rid: LocateTail requires n >= 1, got %d", n))
	}
	zero := n - 1
	r := int64(config.RecordsPerPage)
	return zero / r, zero % r
}
