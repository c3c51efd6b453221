package table

import (
	"testing"

	"github.com/kestrelcol/lstore/concurrency"
	"github.com/kestrelcol/lstore/config"
	"github.com/kestrelcol/lstore/storage"
)

func newTestTable(t *testing.T, numColumns, keyIndex int) *Table {
	t.Helper()
	disk := storage.NewMemDisk()
	pool := storage.NewBufferPool(disk, 256)
	locks := concurrency.NewLockManager()
	tbl, err := Open(pool, disk, locks, "grades", numColumns, keyIndex)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return tbl
}

func TestInsertAndSelectByKey(t *testing.T) {
	tbl := newTestTable(t, 3, 0)
	ok, err := tbl.Insert([]int64{1, 90, 85})
	if err != nil || !ok {
		t.Fatalf("Insert: ok=%v err=%v", ok, err)
	}
	recs, err := tbl.Select(1, 0, nil, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(recs) != 1 || recs[0].Columns[1] != 90 {
		t.Fatalf("got %v", recs)
	}
}

func TestInsertArityMismatchRejected(t *testing.T) {
	tbl := newTestTable(t, 3, 0)
	ok, err := tbl.Insert([]int64{1, 2})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if ok {
		t.Fatal("expected arity mismatch to be rejected")
	}
}

func TestInsertDuplicateKeyRejected(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	if ok, _ := tbl.Insert([]int64{1, 10}); !ok {
		t.Fatal("first insert should succeed")
	}
	ok, err := tbl.Insert([]int64{1, 20})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if ok {
		t.Fatal("duplicate key insert should be rejected")
	}
	if tbl.NumRecords() != 1 {
		t.Fatalf("num_records = %d, want 1", tbl.NumRecords())
	}
}

func TestUpdateThenSelectSeesNewValue(t *testing.T) {
	tbl := newTestTable(t, 3, 0)
	tbl.Insert([]int64{1, 90, 85})

	null := config.NullValue
	ok, err := tbl.Update(1, []int64{null, 95, null})
	if err != nil || !ok {
		t.Fatalf("Update: ok=%v err=%v", ok, err)
	}

	recs, _ := tbl.Select(1, 0, nil, 0)
	if len(recs) != 1 || recs[0].Columns[1] != 95 {
		t.Fatalf("got %v, want col1=95", recs)
	}
	recs, _ = tbl.Select(1, 0, nil, -1)
	if len(recs) != 1 || recs[0].Columns[1] != 90 {
		t.Fatalf("rolled back got %v, want col1=90", recs)
	}
}

func TestUpdateUnknownKeyReturnsFalse(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	ok, err := tbl.Update(42, []int64{42, 1})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if ok {
		t.Fatal("update on unknown key should return false")
	}
}

func TestDeleteThenSelectReturnsEmpty(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	tbl.Insert([]int64{1, 10})
	ok, err := tbl.Delete(1)
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	recs, err := tbl.Select(1, 0, nil, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("got %v, want empty after delete", recs)
	}
	if tbl.NumRecords() != 0 {
		t.Fatalf("num_records = %d, want 0", tbl.NumRecords())
	}
}

func TestDeleteUnknownKeyReturnsFalse(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	ok, err := tbl.Delete(7)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok {
		t.Fatal("delete on unknown key should return false")
	}
}

func TestSumOverKeyRange(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	for k := int64(1); k <= 10; k++ {
		tbl.Insert([]int64{k, k * 10})
	}
	sum, err := tbl.Sum(3, 5, 1, 0)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if sum != 30+40+50 {
		t.Fatalf("Sum = %d, want %d", sum, 30+40+50)
	}
}

func TestSumEmptyRangeReturnsZero(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	tbl.Insert([]int64{1, 100})
	sum, err := tbl.Sum(10, 5, 1, 0)
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if sum != 0 {
		t.Fatalf("Sum = %d, want 0", sum)
	}
}

func TestSelectWithProjection(t *testing.T) {
	tbl := newTestTable(t, 3, 0)
	tbl.Insert([]int64{1, 50, 60})
	recs, err := tbl.Select(1, 0, []bool{true, false, true}, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(recs) != 1 || len(recs[0].Columns) != 2 {
		t.Fatalf("got %v, want 2 projected columns", recs)
	}
	if recs[0].Columns[0] != 1 || recs[0].Columns[1] != 60 {
		t.Fatalf("projection mismatch: %v", recs[0].Columns)
	}
}

func TestSelectOnUnindexedColumnFallsBackToScan(t *testing.T) {
	tbl := newTestTable(t, 3, 0)
	tbl.Insert([]int64{1, 90, 1})
	tbl.Insert([]int64{2, 80, 1})
	tbl.Insert([]int64{3, 70, 2})

	recs, err := tbl.Select(1, 2, nil, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
}

func TestCreateIndexOnUnknownColumnErrors(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	if err := tbl.CreateIndex(5); err != ErrUnknownColumn {
		t.Fatalf("got %v, want ErrUnknownColumn", err)
	}
}

func TestInsertAcrossPageRangeBoundary(t *testing.T) {
	tbl := newTestTable(t, 2, 0)
	n := int64(config.RecordsPerRange) + 10
	for k := int64(1); k <= n; k++ {
		ok, err := tbl.Insert([]int64{k, k})
		if err != nil || !ok {
			t.Fatalf("insert %d: ok=%v err=%v", k, ok, err)
		}
	}
	if tbl.NumRecords() != n {
		t.Fatalf("num_records = %d, want %d", tbl.NumRecords(), n)
	}
	recs, err := tbl.Select(n, 0, nil, 0)
	if err != nil || len(recs) != 1 {
		t.Fatalf("select last record: recs=%v err=%v", recs, err)
	}
}
