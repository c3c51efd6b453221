package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kestrelcol/lstore/config"
	"github.com/kestrelcol/lstore/rid"
)

// ErrBufferPoolFull names the condition where the pool needs a free
// frame but every resident frame is pinned. There is no pinning across
// calls and a capacity of 0 falls back to the default, so no BufferPool
// method currently returns it.
var ErrBufferPoolFull = errors.New("storage: buffer pool full, all frames pinned")

type frameKey struct {
	path   string
	column int
}

// columnFrame is one (page_path, column_index) frame: a resident array
// of config.RecordsPerPage int64 values, plus its LRU links.
type columnFrame struct {
	key    frameKey
	values [config.RecordsPerPage]int64
	dirty  bool
	prev   *columnFrame
	next   *columnFrame
}

// pageState is the per-page (not per-column) occupancy bitmap, tracked
// separately from column frames since occupancy is a property of the
// slot range, not of any one column. Page state is small (8 words for
// R=512) and is kept resident for the life of the pool rather than
// competing for LRU eviction with the much larger column frames.
type pageState struct {
	occupancy *occupancyBitmap
	dirty     bool
}

// BufferPool is the process-wide (or, here, per-Database) cache of page
// frames mediating all byte-level access to pages.
type BufferPool struct {
	mu       sync.Mutex
	disk     Disk
	capacity int

	frames map[frameKey]*columnFrame
	mru    *columnFrame // most recently used
	lru    *columnFrame // least recently used

	pages map[string]*pageState
}

// NewBufferPool creates a pool of the given frame capacity backed by
// disk. A capacity of 0 falls back to config.BufferPoolCapacity.
func NewBufferPool(disk Disk, capacity int) *BufferPool {
	if capacity <= 0 {
		capacity = config.BufferPoolCapacity
	}
	return &BufferPool{
		disk:     disk,
		capacity: capacity,
		frames:   make(map[frameKey]*columnFrame),
		pages:    make(map[string]*pageState),
	}
}

// occupancyWordCount is the number of uint64 words needed to cover
// config.RecordsPerPage slots.
const occupancyWordCount = (config.RecordsPerPage + 63) / 64

func occupancyMetaKeys() []string {
	keys := make([]string, occupancyWordCount)
	for i := range keys {
		keys[i] = fmt.Sprintf("occ%d", i)
	}
	return keys
}

// ensurePageState loads or lazily creates the occupancy bitmap for path.
// Must be called with bp.mu held.
func (bp *BufferPool) ensurePageState(path string) (*pageState, error) {
	if ps, ok := bp.pages[path]; ok {
		return ps, nil
	}
	meta, err := bp.disk.ReadMetadata(path)
	if err != nil {
		return nil, err
	}
	words := make([]uint64, occupancyWordCount)
	for i, k := range occupancyMetaKeys() {
		words[i] = uint64(meta[k])
	}
	ps := &pageState{occupancy: occupancyFromWords(words)}
	bp.pages[path] = ps
	return ps, nil
}

// loadFrame returns the frame for (path, column), reading it from disk
// (or creating a zeroed frame, for a fresh page) if not resident.
// create=false makes a missing on-disk page return ErrPageNotAllocated,
// matching a pure-read access; create=true is used by inserts, which
// are allowed to allocate pages lazily.
func (bp *BufferPool) loadFrame(path string, column int, create bool) (*columnFrame, error) {
	key := frameKey{path, column}
	if f, ok := bp.frames[key]; ok {
		bp.touch(f)
		return f, nil
	}

	raw, err := bp.disk.ReadPage(path, column)
	switch {
	case err == nil:
		f := &columnFrame{key: key}
		decodeColumn(raw, &f.values)
		bp.admit(f)
		return f, nil
	case errors.Is(err, ErrPageNotAllocated):
		if !create {
			return nil, ErrPageNotAllocated
		}
		f := &columnFrame{key: key}
		bp.admit(f)
		return f, nil
	default:
		return nil, err
	}
}

// admit inserts a freshly loaded frame at the MRU end and evicts if the
// pool is over capacity.
func (bp *BufferPool) admit(f *columnFrame) {
	bp.frames[f.key] = f
	bp.pushFront(f)
	if len(bp.frames) > bp.capacity {
		bp.evictOne()
	}
}

func (bp *BufferPool) touch(f *columnFrame) {
	if f == bp.mru {
		return
	}
	bp.unlink(f)
	bp.pushFront(f)
}

func (bp *BufferPool) pushFront(f *columnFrame) {
	f.prev = nil
	f.next = bp.mru
	if bp.mru != nil {
		bp.mru.prev = f
	}
	bp.mru = f
	if bp.lru == nil {
		bp.lru = f
	}
}

func (bp *BufferPool) unlink(f *columnFrame) {
	if f.prev != nil {
		f.prev.next = f.next
	} else {
		bp.mru = f.next
	}
	if f.next != nil {
		f.next.prev = f.prev
	} else {
		bp.lru = f.prev
	}
	f.prev, f.next = nil, nil
}

// evictOne flushes and drops the least-recently-used frame. Dirty
// frames must be flushed before eviction; since this implementation
// has no cross-call pinning, evictOne never fails with
// ErrBufferPoolFull in practice.
func (bp *BufferPool) evictOne() {
	victim := bp.lru
	if victim == nil {
		return
	}
	if victim.dirty {
		_ = bp.flushFrame(victim) // best-effort; I/O errors surface on the next explicit commit
	}
	bp.unlink(victim)
	delete(bp.frames, victim.key)
}

func (bp *BufferPool) flushFrame(f *columnFrame) error {
	raw := encodeColumn(&f.values)
	if err := bp.disk.WritePage(f.key.path, f.key.column, raw); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// InsertRecord writes columns (a sparse map of column index → value,
// including reserved columns) into the given slot of the page at path,
// marks the page's occupancy bit and every touched frame dirty, and
// returns the slot it wrote to. PageRange always calls this with the
// slot its RID/TID arithmetic already determined: RIDs/TIDs are handed
// out in the order that makes that the next unset bit, which also
// avoids ever reusing a slot retired by delete.
func (bp *BufferPool) InsertRecord(path string, slot int64, columns map[int]int64) (int64, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	ps, err := bp.ensurePageState(path)
	if err != nil {
		return 0, err
	}
	ps.occupancy.set(slot)
	ps.dirty = true

	for col, val := range columns {
		f, err := bp.loadFrame(path, col, true)
		if err != nil {
			return 0, err
		}
		f.values[slot] = val
		f.dirty = true
	}
	return slot, nil
}

// GetRecordEntry returns the value of column at slot in the page at path.
func (bp *BufferPool) GetRecordEntry(path string, slot int64, column int) (int64, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	f, err := bp.loadFrame(path, column, false)
	if err != nil {
		return 0, err
	}
	return f.values[slot], nil
}

// SetRecordEntry overwrites a single column value at an already
// allocated slot, marking the frame dirty.
func (bp *BufferPool) SetRecordEntry(path string, slot int64, column int, value int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	f, err := bp.loadFrame(path, column, true)
	if err != nil {
		return err
	}
	f.values[slot] = value
	f.dirty = true
	return nil
}

// GetSchemaEncoding returns the schema-encoding bitvector for the
// record at slot, given the page's numColumns.
func (bp *BufferPool) GetSchemaEncoding(path string, slot int64, numColumns int) (SchemaEncoding, error) {
	v, err := bp.GetRecordEntry(path, slot, ReservedIndex(numColumns, ColSchemaEncoding))
	return SchemaEncoding(uint64(v)), err
}

// SetSchemaEncoding overwrites the schema-encoding bitvector for slot.
func (bp *BufferPool) SetSchemaEncoding(path string, slot int64, numColumns int, enc SchemaEncoding) error {
	return bp.SetRecordEntry(path, slot, ReservedIndex(numColumns, ColSchemaEncoding), int64(uint64(enc)))
}

// GetIndirectionTID returns the indirection pointer for the record at
// slot (0 means "never updated").
func (bp *BufferPool) GetIndirectionTID(path string, slot int64, numColumns int) (rid.ID, error) {
	v, err := bp.GetRecordEntry(path, slot, ReservedIndex(numColumns, ColIndirection))
	return rid.ID(v), err
}

// SetIndirectionTID overwrites the indirection pointer for slot.
func (bp *BufferPool) SetIndirectionTID(path string, slot int64, numColumns int, tid rid.ID) error {
	return bp.SetRecordEntry(path, slot, ReservedIndex(numColumns, ColIndirection), int64(tid))
}

// IsOccupied reports whether slot is marked live in path's occupancy
// bitmap. Returns false (not an error) for a page never written to.
func (bp *BufferPool) IsOccupied(path string, slot int64) (bool, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	ps, err := bp.ensurePageState(path)
	if err != nil {
		return false, err
	}
	return ps.occupancy.contains(slot), nil
}

// ClearOccupied marks slot as logically deleted by clearing its bit in
// the page's occupancy bitmap; the record's column values are left in
// place.
func (bp *BufferPool) ClearOccupied(path string, slot int64) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	ps, err := bp.ensurePageState(path)
	if err != nil {
		return err
	}
	ps.occupancy.clear(slot)
	ps.dirty = true
	return nil
}

// CommitWritesToDisk flushes every dirty frame and every dirty page's
// occupancy bitmap through the Disk collaborator, then clears dirty
// flags. This is the engine's entire durability story: commit means
// flush dirty pages, with no write-ahead log underneath it.
func (bp *BufferPool) CommitWritesToDisk() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, f := range bp.frames {
		if !f.dirty {
			continue
		}
		if err := bp.flushFrame(f); err != nil {
			return fmt.Errorf("storage: commit: %w", err)
		}
	}

	for path, ps := range bp.pages {
		if !ps.dirty {
			continue
		}
		meta, err := bp.disk.ReadMetadata(path)
		if err != nil {
			return fmt.Errorf("storage: commit: %w", err)
		}
		words := ps.occupancy.words()
		for i, k := range occupancyMetaKeys() {
			if i < len(words) {
				meta[k] = int64(words[i])
			}
		}
		if err := bp.disk.WriteMetadata(path, meta); err != nil {
			return fmt.Errorf("storage: commit: %w", err)
		}
		ps.dirty = false
	}
	return nil
}

// encodeColumn/decodeColumn convert between a resident [R]int64 array
// and its flat byte-slice disk representation.
func encodeColumn(values *[config.RecordsPerPage]int64) []byte {
	out := make([]byte, config.RecordsPerPage*config.ValueWidth)
	for i, v := range values {
		putInt64(out[i*config.ValueWidth:], v)
	}
	return out
}

func decodeColumn(raw []byte, values *[config.RecordsPerPage]int64) {
	n := len(raw) / config.ValueWidth
	for i := 0; i < n && i < len(values); i++ {
		values[i] = getInt64(raw[i*config.ValueWidth:])
	}
}

func putInt64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

func getInt64(b []byte) int64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u |= uint64(b[i]) << (8 * i)
	}
	return int64(u)
}
