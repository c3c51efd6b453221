// Package index implements a pluggable secondary index: a two-level
// mapping column_index → (value → set<RID>), with exact and inclusive
// range lookup, and ErrNoIndex as the signal for the caller to fall
// back to a full table scan.
//
// Each column's Index is an in-memory map, not a page-backed structure:
// a secondary index here lives and dies with the process and has no
// on-disk format. Nothing rebuilds it from stored rows: a table opened
// again over existing pages starts with an empty index.
package index

import (
	"errors"
	"sort"
	"sync"

	"github.com/kestrelcol/lstore/rid"
)

// ErrNoIndex is returned by Locate/LocateRange when the requested
// column has no index; callers fall back to a full table scan.
var ErrNoIndex = errors.New("index: column is not indexed")

// Index is a single column's value → set<RID> map, plus a sorted key
// slice to serve inclusive range queries without a full scan.
type Index struct {
	mu      sync.RWMutex
	buckets map[int64]map[rid.ID]struct{}
	sorted  []int64 // kept sorted; rebuilt lazily on the next range query after a structural change
	dirty   bool
}

func newIndex() *Index {
	return &Index{buckets: make(map[int64]map[rid.ID]struct{})}
}

func (idx *Index) add(value int64, id rid.ID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	b, ok := idx.buckets[value]
	if !ok {
		b = make(map[rid.ID]struct{})
		idx.buckets[value] = b
		idx.dirty = true
	}
	b[id] = struct{}{}
}

func (idx *Index) remove(value int64, id rid.ID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	b, ok := idx.buckets[value]
	if !ok {
		return
	}
	delete(b, id)
	if len(b) == 0 {
		delete(idx.buckets, value)
		idx.dirty = true
	}
}

func (idx *Index) locate(value int64) []rid.ID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	b := idx.buckets[value]
	out := make([]rid.ID, 0, len(b))
	for id := range b {
		out = append(out, id)
	}
	return out
}

func (idx *Index) locateRange(lo, hi int64) []rid.ID {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.dirty {
		idx.rebuildSorted()
	}
	var out []rid.ID
	start := sort.Search(len(idx.sorted), func(i int) bool { return idx.sorted[i] >= lo })
	for _, v := range idx.sorted[start:] {
		if v > hi {
			break
		}
		for id := range idx.buckets[v] {
			out = append(out, id)
		}
	}
	return out
}

// rebuildSorted recomputes the sorted key slice. Must be called with
// idx.mu held for writing.
func (idx *Index) rebuildSorted() {
	keys := make([]int64, 0, len(idx.buckets))
	for v := range idx.buckets {
		keys = append(keys, v)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	idx.sorted = keys
	idx.dirty = false
}

// Manager owns every column Index for one table.
type Manager struct {
	mu      sync.RWMutex
	columns map[int]*Index
}

// NewManager creates an empty index manager.
func NewManager() *Manager {
	return &Manager{columns: make(map[int]*Index)}
}

// CreateIndex makes column an indexed column. Idempotent.
func (m *Manager) CreateIndex(column int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.columns[column]; !ok {
		m.columns[column] = newIndex()
	}
}

// HasIndex reports whether column is indexed.
func (m *Manager) HasIndex(column int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.columns[column]
	return ok
}

func (m *Manager) get(column int) (*Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.columns[column]
	return idx, ok
}

// Insert adds id to every indexed column's bucket for its value in
// columns.
func (m *Manager) Insert(columns []int64, id rid.ID) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for col, idx := range m.columns {
		if col < len(columns) {
			idx.add(columns[col], id)
		}
	}
}

// Update moves id between buckets for every indexed column whose value
// changed (old != new and new != config.NullValue, which the caller
// already resolves before calling Update — old/new here are the fully
// merged tuples).
func (m *Manager) Update(oldColumns, newColumns []int64, id rid.ID) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for col, idx := range m.columns {
		if col >= len(oldColumns) || col >= len(newColumns) {
			continue
		}
		if oldColumns[col] == newColumns[col] {
			continue
		}
		idx.remove(oldColumns[col], id)
		idx.add(newColumns[col], id)
	}
}

// Delete removes id from every indexed column's bucket.
func (m *Manager) Delete(columns []int64, id rid.ID) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for col, idx := range m.columns {
		if col < len(columns) {
			idx.remove(columns[col], id)
		}
	}
}

// Locate returns the RID set with columns[column] == value, or
// ErrNoIndex if column is not indexed.
func (m *Manager) Locate(value int64, column int) ([]rid.ID, error) {
	idx, ok := m.get(column)
	if !ok {
		return nil, ErrNoIndex
	}
	return idx.locate(value), nil
}

// LocateRange returns the RID set with columns[column] in [lo, hi], or
// ErrNoIndex if column is not indexed.
func (m *Manager) LocateRange(lo, hi int64, column int) ([]rid.ID, error) {
	idx, ok := m.get(column)
	if !ok {
		return nil, ErrNoIndex
	}
	if hi < lo {
		return nil, nil
	}
	return idx.locateRange(lo, hi), nil
}
