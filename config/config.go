// Package config holds the compile-time layout constants of the storage
// engine. Changing RecordsPerPage or BasePagesPerRange re-partitions the
// RID address space and invalidates any database written under the old
// values.
package config

import "math"

const (
	// RecordsPerPage is R: the number of slots in every base or tail page.
	RecordsPerPage = 512

	// BasePagesPerRange is B: the fixed number of base pages a page range
	// owns. Tail pages are unbounded and grow as updates occur.
	BasePagesPerRange = 16

	// ValueWidth is the width in bytes of every stored column value
	// (int64).
	ValueWidth = 8

	// RecordsPerRange is the number of base RIDs that fit in one page
	// range before a new range must be created.
	RecordsPerRange = RecordsPerPage * BasePagesPerRange
)

// NullValue is the sentinel stored in a tail record's column slot to mean
// "this update did not touch this column". It is reserved: no inserted
// column value may legitimately be NullValue.
const NullValue int64 = math.MinInt64

// BufferPoolCapacity is the default number of page frames the buffer pool
// keeps resident. storage.NewBufferPool uses it when given a capacity of
// 0, which is what api.Open and api.OpenMemory always pass.
const BufferPoolCapacity = 256

// MergeTailPageThreshold is the number of tail pages a range accumulates
// before it becomes a merge candidate. Unused until merge is implemented
// (see pagerange.PageRange.Merge).
const MergeTailPageThreshold = 64
