// Package pagerange implements the algorithmic heart of the engine: a
// page range owning B base pages and an unbounded list of tail pages,
// and the insert/read/update/delete algorithm that threads versions
// through the tail chain.
//
// Pages are acquired lazily: there is nothing to allocate up front
// beyond a path string, since storage.BasePage/storage.TailPage are
// stateless adapters over the shared buffer pool.
package pagerange

import (
	"fmt"
	"sync"

	"github.com/kestrelcol/lstore/config"
	"github.com/kestrelcol/lstore/rid"
	"github.com/kestrelcol/lstore/storage"
)

// PageRange owns exactly config.BasePagesPerRange base pages (addressed
// lazily — there is nothing to "create" beyond the path string, since
// storage.BasePage is a stateless adapter) and an ordered, growing list
// of tail pages.
type PageRange struct {
	pool       *storage.BufferPool
	disk       storage.Disk
	tablePath  string
	rangeIndex int64
	numColumns int

	mu        sync.Mutex // guards latestTID/tpsIndex bookkeeping below
	latestTID int64
	tpsIndex  int64
}

// Open constructs (or re-attaches to) the page range at rangeIndex
// within tablePath, loading its persisted latest_tid/tps_index.
func Open(pool *storage.BufferPool, disk storage.Disk, tablePath string, rangeIndex int64, numColumns int) (*PageRange, error) {
	pr := &PageRange{
		pool:       pool,
		disk:       disk,
		tablePath:  tablePath,
		rangeIndex: rangeIndex,
		numColumns: numColumns,
	}
	meta, err := disk.ReadMetadata(pr.path())
	if err != nil {
		return nil, err
	}
	pr.latestTID = meta["latest_tid"]
	pr.tpsIndex = meta["tps_index"]
	return pr, nil
}

func (pr *PageRange) path() string {
	return fmt.Sprintf("%s/PR%d", pr.tablePath, pr.rangeIndex)
}

func (pr *PageRange) basePagePath(idx int64) string {
	return fmt.Sprintf("%s/BP%d", pr.path(), idx)
}

func (pr *PageRange) tailPagePath(idx int64) string {
	return fmt.Sprintf("%s/TP%d", pr.path(), idx)
}

func (pr *PageRange) basePage(idx int64) *storage.BasePage {
	return storage.NewBasePage(pr.pool, pr.basePagePath(idx), pr.numColumns)
}

func (pr *PageRange) tailPage(idx int64) *storage.TailPage {
	return storage.NewTailPage(pr.pool, pr.tailPagePath(idx), pr.numColumns)
}

// LatestTID returns the range's current tail-ID watermark.
func (pr *PageRange) LatestTID() int64 {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.latestTID
}

// flushMeta persists latest_tid/tps_index immediately. Called with
// pr.mu held. Both fields are written synchronously on every TID
// allocation rather than only at close, so there is nothing to
// reconcile on the next Open.
func (pr *PageRange) flushMeta() error {
	return pr.disk.WriteMetadata(pr.path(), map[string]int64{
		"range_index": pr.rangeIndex,
		"latest_tid":  pr.latestTID,
		"tps_index":   pr.tpsIndex,
	})
}

// Insert writes a brand-new base record at the slot its own RID
// addresses to.
func (pr *PageRange) Insert(id rid.ID, columns []int64) error {
	loc := rid.LocateBase(id.Counter())
	if loc.PageRangeIndex != pr.rangeIndex {
		return fmt.Errorf("pagerange: rid %d does not belong to range %d", id.Counter(), pr.rangeIndex)
	}
	return pr.basePage(loc.PageIndex).Insert(id, loc.SlotIndex, columns)
}

// Read performs a versioned read: version=0 is latest, negative
// versions rewind through the tail chain, clamped to the base tuple if
// they overshoot. found=false means the base record was never inserted
// or has been deleted.
func (pr *PageRange) Read(id rid.ID, version int) (columns []int64, found bool, err error) {
	loc := rid.LocateBase(id.Counter())
	bp := pr.basePage(loc.PageIndex)

	occ, err := bp.IsOccupied(loc.SlotIndex)
	if err != nil {
		return nil, false, err
	}
	if !occ {
		return nil, false, nil
	}

	base := make([]int64, pr.numColumns)
	for i := range base {
		v, err := bp.Column(loc.SlotIndex, i)
		if err != nil {
			return nil, false, err
		}
		base[i] = v
	}

	indirection, err := bp.Indirection(loc.SlotIndex)
	if err != nil {
		return nil, false, err
	}
	if indirection.IsZero() {
		return base, true, nil
	}

	schemaEnc, err := bp.SchemaEncoding(loc.SlotIndex)
	if err != nil {
		return nil, false, err
	}

	hops := -version
	if hops < 0 {
		hops = 0
	}
	cur := indirection
	for h := 0; h < hops; h++ {
		tloc, tslot := rid.LocateTail(cur.Counter())
		prev, err := pr.tailPage(tloc).Indirection(tslot)
		if err != nil {
			return nil, false, err
		}
		if prev.IsZero() {
			// Overshot the oldest tail version: clamp to base-only.
			return base, true, nil
		}
		cur = prev
	}

	tloc, tslot := rid.LocateTail(cur.Counter())
	tp := pr.tailPage(tloc)
	merged := make([]int64, pr.numColumns)
	for i := range merged {
		tv, err := tp.Column(tslot, i)
		if err != nil {
			return nil, false, err
		}
		if schemaEnc.Get(i) && tv != config.NullValue {
			merged[i] = tv
		} else {
			merged[i] = base[i]
		}
	}
	return merged, true, nil
}

// Update appends a new tail record layering newColumns over the
// previous version. newColumns uses config.NullValue to mark positions
// the caller did not set; such positions fall through to the previous
// value. Returns the newly allocated TID.
func (pr *PageRange) Update(id rid.ID, newColumns []int64) (rid.ID, error) {
	old, found, err := pr.Read(id, 0)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("pagerange: update on missing/deleted rid %d", id.Counter())
	}

	loc := rid.LocateBase(id.Counter())
	bp := pr.basePage(loc.PageIndex)

	oldSchema, err := bp.SchemaEncoding(loc.SlotIndex)
	if err != nil {
		return 0, err
	}
	oldIndirection, err := bp.Indirection(loc.SlotIndex)
	if err != nil {
		return 0, err
	}

	merged := make([]int64, pr.numColumns)
	newSchema := oldSchema
	for i := range merged {
		if newColumns[i] != config.NullValue {
			merged[i] = newColumns[i]
			if newColumns[i] != old[i] {
				newSchema = newSchema.Set(i, true)
			}
		} else {
			merged[i] = old[i]
		}
	}

	newTID, err := pr.allocateTID()
	if err != nil {
		return 0, err
	}
	tloc, tslot := rid.LocateTail(newTID.Counter())
	if err := pr.tailPage(tloc).Insert(newTID, tslot, merged, oldIndirection, id.Counter()); err != nil {
		return 0, err
	}

	if err := bp.SetIndirection(loc.SlotIndex, newTID); err != nil {
		return 0, err
	}
	if err := bp.SetSchemaEncoding(loc.SlotIndex, newSchema); err != nil {
		return 0, err
	}
	return newTID, nil
}

// Delete clears the base slot's occupancy bit and appends a tombstone
// tail record whose stored rid column is the negation of the base rid.
func (pr *PageRange) Delete(id rid.ID) error {
	loc := rid.LocateBase(id.Counter())
	bp := pr.basePage(loc.PageIndex)

	occ, err := bp.IsOccupied(loc.SlotIndex)
	if err != nil {
		return err
	}
	if !occ {
		return fmt.Errorf("pagerange: delete on missing/already-deleted rid %d", id.Counter())
	}

	oldIndirection, err := bp.Indirection(loc.SlotIndex)
	if err != nil {
		return err
	}

	tombstoneTID, err := pr.allocateTID()
	if err != nil {
		return err
	}
	tloc, tslot := rid.LocateTail(tombstoneTID.Counter())
	tombstoneColumns := make([]int64, pr.numColumns)
	for i := range tombstoneColumns {
		tombstoneColumns[i] = config.NullValue
	}
	if err := pr.tailPage(tloc).Insert(tombstoneTID, tslot, tombstoneColumns, oldIndirection, -id.Counter()); err != nil {
		return err
	}
	if err := bp.SetIndirection(loc.SlotIndex, tombstoneTID); err != nil {
		return err
	}
	return bp.Delete(loc.SlotIndex)
}

// allocateTID hands out the next TID for this range and persists the
// watermark immediately; latest_tid is monotonically non-decreasing
// for the life of the database.
func (pr *PageRange) allocateTID() (rid.ID, error) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.latestTID++
	id := rid.NewTail(pr.latestTID)
	if err := pr.flushMeta(); err != nil {
		return 0, err
	}
	return id, nil
}

// Merge is the future compaction hook: when a range's tail pages
// exceed config.MergeTailPageThreshold, merge would freeze the current
// tails, rebuild base pages by applying each base RID's chain up to
// the freeze point, and advance tps_index. Left unimplemented; calling
// it is always safe and changes no visible state.
func (pr *PageRange) Merge() error {
	return nil
}
