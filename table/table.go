// Package table orchestrates config, rid, storage, pagerange, index and
// concurrency for a single relation: Insert, Select, Sum, Update,
// Delete, each acquiring the right page-range lock before touching
// pages.
//
// Every operation follows the same shape: acquire the page range's
// lock, operate through the page range, update the secondary index,
// release the lock.
package table

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kestrelcol/lstore/concurrency"
	"github.com/kestrelcol/lstore/config"
	"github.com/kestrelcol/lstore/index"
	"github.com/kestrelcol/lstore/pagerange"
	"github.com/kestrelcol/lstore/rid"
	"github.com/kestrelcol/lstore/storage"
)

// ErrUnknownColumn is returned by CreateIndex for an out-of-range
// column. The five core operations report precondition violations and
// not-found conditions as a plain bool rather than a distinct error.
var ErrUnknownColumn = errors.New("table: column index out of range")

// Record is a single row as returned by Select: its RID plus (possibly
// projected) column values.
type Record struct {
	RID     rid.ID
	Columns []int64
}

// Table is one relation: a fixed column count, a designated key column,
// a growing set of page ranges, a secondary-index manager and the
// page-range lock manager shared with every other table operation.
type Table struct {
	name       string
	numColumns int
	keyColumn  int
	tablePath  string

	pool    *storage.BufferPool
	disk    storage.Disk
	locks   *concurrency.LockManager
	indexes *index.Manager

	numRecords atomic.Int64 // live row count: committed inserts minus committed deletes
	nextRID    atomic.Int64 // monotonic RID allocator; never decremented, so a deleted RID is never reissued

	rangesMu sync.Mutex
	ranges   map[int64]*pagerange.PageRange
}

// Open constructs (or re-attaches to) the table named name with
// numColumns columns and keyIndex as its unique key column.
func Open(pool *storage.BufferPool, disk storage.Disk, locks *concurrency.LockManager, name string, numColumns, keyIndex int) (*Table, error) {
	if keyIndex < 0 || keyIndex >= numColumns {
		return nil, fmt.Errorf("table: key index %d out of range [0,%d)", keyIndex, numColumns)
	}
	t := &Table{
		name:       name,
		numColumns: numColumns,
		keyColumn:  keyIndex,
		tablePath:  name,
		pool:       pool,
		disk:       disk,
		locks:      locks,
		indexes:    index.NewManager(),
		ranges:     make(map[int64]*pagerange.PageRange),
	}
	t.indexes.CreateIndex(keyIndex)

	meta, err := disk.ReadMetadata(t.tablePath)
	if err != nil {
		return nil, err
	}
	t.numRecords.Store(meta["num_records"])
	t.nextRID.Store(meta["next_rid"])
	return t, nil
}

// Name returns the table's name.
func (t *Table) Name() string { return t.name }

// NumRecords returns the number of committed inserts minus committed
// deletes.
func (t *Table) NumRecords() int64 { return t.numRecords.Load() }

// CreateIndex makes column an indexed column. There is no backfill:
// indexes are built incrementally as rows are inserted, so an index
// created after rows already exist will simply miss them. Callers are
// expected to create non-key indexes before inserting; the key column
// is always indexed automatically.
func (t *Table) CreateIndex(column int) error {
	if column < 0 || column >= t.numColumns {
		return ErrUnknownColumn
	}
	t.indexes.CreateIndex(column)
	return nil
}

func (t *Table) rangeLockKey(rangeIndex int64) string {
	return fmt.Sprintf("%s/PR%d", t.name, rangeIndex)
}

// pageRange returns (creating if necessary) the page range at
// rangeIndex. The page-range lock held by the caller only serializes
// access to one range's data; rangeIndex here can be any range, so
// t.ranges itself needs its own mutex against concurrent callers
// working different ranges at once.
func (t *Table) pageRange(rangeIndex int64) (*pagerange.PageRange, error) {
	t.rangesMu.Lock()
	defer t.rangesMu.Unlock()
	if pr, ok := t.ranges[rangeIndex]; ok {
		return pr, nil
	}
	pr, err := pagerange.Open(t.pool, t.disk, t.tablePath, rangeIndex, t.numColumns)
	if err != nil {
		return nil, err
	}
	t.ranges[rangeIndex] = pr
	return pr, nil
}

func (t *Table) persistMeta() error {
	return t.disk.WriteMetadata(t.tablePath, map[string]int64{
		"num_columns": int64(t.numColumns),
		"key_index":   int64(t.keyColumn),
		"num_records": t.numRecords.Load(),
		"next_rid":    t.nextRID.Load(),
	})
}

// Insert allocates a fresh RID from the monotonic counter, validates
// arity and key uniqueness, writes to the page range and the index,
// and increments num_records. Returns false (committed=false) on any
// precondition violation.
func (t *Table) Insert(columns []int64) (bool, error) {
	if len(columns) != t.numColumns {
		return false, nil
	}

	if existing, err := t.indexes.Locate(columns[t.keyColumn], t.keyColumn); err == nil && len(existing) > 0 {
		return false, nil
	}

	// nextRID.Add is the sole source of a new RID: it is the only way a
	// counter value is produced, so two concurrent Inserts can never be
	// handed the same one, unlike deriving it from a load of num_records.
	newCounter := t.nextRID.Add(1)
	id := rid.NewBase(newCounter)
	loc := rid.LocateBase(newCounter)

	key := t.rangeLockKey(loc.PageRangeIndex)
	t.locks.AcquireWrite(key)
	defer t.locks.ReleaseWrite(key)

	pr, err := t.pageRange(loc.PageRangeIndex)
	if err != nil {
		return false, err
	}
	if err := pr.Insert(id, columns); err != nil {
		return false, err
	}

	t.indexes.Insert(columns, id)
	t.numRecords.Add(1)
	if err := t.persistMeta(); err != nil {
		return false, err
	}
	return true, nil
}

// Select returns every record whose columns[searchColumn] ==
// searchKey, projected to selectedColumns if non-nil (a bitmask, one
// entry per column — true means "include"), at the given rollback
// version. Uses the index when available, else scans every RID ever
// allocated.
func (t *Table) Select(searchKey int64, searchColumn int, selectedColumns []bool, version int) ([]Record, error) {
	ids, err := t.indexes.Locate(searchKey, searchColumn)
	if err != nil {
		if !errors.Is(err, index.ErrNoIndex) {
			return nil, err
		}
		ids, err = t.scanForValue(searchKey, searchColumn, version)
		if err != nil {
			return nil, err
		}
	}

	var out []Record
	for _, id := range ids {
		cols, found, err := t.readLocked(id, version)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		// An index hit reflects the live tuple, not the requested
		// version; re-check the predicate against the version actually
		// read so a rolled-back value can't falsely match.
		if cols[searchColumn] != searchKey {
			continue
		}
		out = append(out, Record{RID: id, Columns: project(cols, selectedColumns)})
	}
	return out, nil
}

// scanForValue is the full-scan fallback used when searchColumn has no
// index: it walks every RID ever allocated (1..next_rid) under a read
// lock per range. It cannot bound itself by num_records, since that
// count drops on delete while higher RIDs can still be live.
func (t *Table) scanForValue(searchKey int64, searchColumn int, version int) ([]rid.ID, error) {
	var out []rid.ID
	n := t.nextRID.Load()
	for c := int64(1); c <= n; c++ {
		id := rid.NewBase(c)
		cols, found, err := t.readLocked(id, version)
		if err != nil {
			return nil, err
		}
		if found && cols[searchColumn] == searchKey {
			out = append(out, id)
		}
	}
	return out, nil
}

// readLocked performs a single versioned read, acquiring and releasing
// that RID's page-range read lock around just this one access, so the
// lock is released before moving on to the next RID.
func (t *Table) readLocked(id rid.ID, version int) ([]int64, bool, error) {
	loc := rid.LocateBase(id.Counter())
	key := t.rangeLockKey(loc.PageRangeIndex)
	t.locks.AcquireRead(key)
	defer t.locks.ReleaseRead(key)

	pr, err := t.pageRange(loc.PageRangeIndex)
	if err != nil {
		return nil, false, err
	}
	return pr.Read(id, version)
}

func project(cols []int64, mask []bool) []int64 {
	if mask == nil {
		return cols
	}
	out := make([]int64, 0, len(cols))
	for i, v := range cols {
		if i < len(mask) && mask[i] {
			out = append(out, v)
		}
	}
	return out
}

// Sum adds columns[aggColumn] over every key in [lo, hi] (inclusive),
// using the index's range lookup. Returns 0 if hi < lo.
func (t *Table) Sum(lo, hi int64, aggColumn int, version int) (int64, error) {
	if hi < lo {
		return 0, nil
	}
	ids, err := t.indexes.LocateRange(lo, hi, t.keyColumn)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, id := range ids {
		cols, found, err := t.readLocked(id, version)
		if err != nil {
			return 0, err
		}
		if found {
			sum += cols[aggColumn]
		}
	}
	return sum, nil
}

// Update locates the unique RID via the key index, validates arity,
// and applies newColumns (config.NullValue marks "leave unchanged")
// under a write lock. Returns false if the key does not exist.
func (t *Table) Update(key int64, newColumns []int64) (bool, error) {
	if len(newColumns) != t.numColumns {
		return false, nil
	}
	ids, err := t.indexes.Locate(key, t.keyColumn)
	if err != nil || len(ids) == 0 {
		return false, nil
	}
	if len(ids) != 1 {
		return false, fmt.Errorf("table: key %d maps to %d RIDs, want exactly 1", key, len(ids))
	}
	id := ids[0]

	loc := rid.LocateBase(id.Counter())
	lockKey := t.rangeLockKey(loc.PageRangeIndex)
	t.locks.AcquireWrite(lockKey)
	defer t.locks.ReleaseWrite(lockKey)

	pr, err := t.pageRange(loc.PageRangeIndex)
	if err != nil {
		return false, err
	}
	old, found, err := pr.Read(id, 0)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	merged := make([]int64, t.numColumns)
	for i := range merged {
		if newColumns[i] != config.NullValue {
			merged[i] = newColumns[i]
		} else {
			merged[i] = old[i]
		}
	}

	if _, err := pr.Update(id, newColumns); err != nil {
		return false, err
	}
	t.indexes.Update(old, merged, id)
	return true, nil
}

// Delete locates the unique RID via the key index and removes it under
// a write lock, symmetric to Update. Returns false if the key does not
// exist.
func (t *Table) Delete(key int64) (bool, error) {
	ids, err := t.indexes.Locate(key, t.keyColumn)
	if err != nil || len(ids) == 0 {
		return false, nil
	}
	if len(ids) != 1 {
		return false, fmt.Errorf("table: key %d maps to %d RIDs, want exactly 1", key, len(ids))
	}
	id := ids[0]

	loc := rid.LocateBase(id.Counter())
	lockKey := t.rangeLockKey(loc.PageRangeIndex)
	t.locks.AcquireWrite(lockKey)
	defer t.locks.ReleaseWrite(lockKey)

	pr, err := t.pageRange(loc.PageRangeIndex)
	if err != nil {
		return false, err
	}
	cols, found, err := pr.Read(id, 0)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	if err := pr.Delete(id); err != nil {
		return false, err
	}
	t.indexes.Delete(cols, id)
	t.numRecords.Add(-1)
	if err := t.persistMeta(); err != nil {
		return false, err
	}
	return true, nil
}
