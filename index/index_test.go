package index

import (
	"testing"

	"github.com/kestrelcol/lstore/rid"
)

func TestInsertAndLocate(t *testing.T) {
	m := NewManager()
	m.CreateIndex(0)
	m.Insert([]int64{10, 20}, rid.NewBase(1))
	m.Insert([]int64{10, 30}, rid.NewBase(2))

	got, err := m.Locate(10, 0)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 RIDs", got)
	}
}

func TestLocateNoIndex(t *testing.T) {
	m := NewManager()
	if _, err := m.Locate(10, 0); err != ErrNoIndex {
		t.Fatalf("got %v, want ErrNoIndex", err)
	}
}

func TestUpdateMovesBucket(t *testing.T) {
	m := NewManager()
	m.CreateIndex(0)
	id := rid.NewBase(1)
	m.Insert([]int64{10}, id)
	m.Update([]int64{10}, []int64{99}, id)

	if got, _ := m.Locate(10, 0); len(got) != 0 {
		t.Fatalf("old bucket should be empty, got %v", got)
	}
	got, _ := m.Locate(99, 0)
	if len(got) != 1 || got[0] != id {
		t.Fatalf("got %v, want [%v]", got, id)
	}
}

func TestDeleteRemovesFromIndex(t *testing.T) {
	m := NewManager()
	m.CreateIndex(0)
	id := rid.NewBase(1)
	m.Insert([]int64{10}, id)
	m.Delete([]int64{10}, id)
	got, _ := m.Locate(10, 0)
	if len(got) != 0 {
		t.Fatalf("got %v, want empty after delete", got)
	}
}

func TestLocateRangeInclusive(t *testing.T) {
	m := NewManager()
	m.CreateIndex(0)
	for k := int64(1); k <= 100; k++ {
		m.Insert([]int64{k}, rid.NewBase(k))
	}
	got, err := m.LocateRange(10, 20, 0)
	if err != nil {
		t.Fatalf("LocateRange: %v", err)
	}
	if len(got) != 11 {
		t.Fatalf("got %d RIDs, want 11", len(got))
	}
}

func TestLocateRangeHiLessThanLo(t *testing.T) {
	m := NewManager()
	m.CreateIndex(0)
	m.Insert([]int64{5}, rid.NewBase(1))
	got, err := m.LocateRange(20, 10, 0)
	if err != nil {
		t.Fatalf("LocateRange: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestLocateRangeAfterUpdatesRebuildsSortedKeys(t *testing.T) {
	m := NewManager()
	m.CreateIndex(0)
	m.Insert([]int64{1}, rid.NewBase(1))
	m.Insert([]int64{2}, rid.NewBase(2))
	if got, _ := m.LocateRange(1, 2, 0); len(got) != 2 {
		t.Fatalf("initial range: got %v", got)
	}
	m.Update([]int64{1}, []int64{50}, rid.NewBase(1))
	got, _ := m.LocateRange(1, 2, 0)
	if len(got) != 1 {
		t.Fatalf("after update, got %v, want 1 remaining in [1,2]", got)
	}
	got, _ = m.LocateRange(50, 50, 0)
	if len(got) != 1 {
		t.Fatalf("moved value not found: %v", got)
	}
}
