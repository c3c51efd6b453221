// Package txn implements a transaction/worker runtime: a Transaction is
// an ordered list of bound table operations that run sequentially and
// abort on the first false result; a TransactionWorker owns a set of
// transactions and runs them, in order, on a single goroutine.
// Concurrency comes from running multiple TransactionWorkers at once,
// not from parallelizing one worker's own transactions.
package txn

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kestrelcol/lstore/table"
)

// operation is one queued table call, bound with its table and
// arguments into a closure by AddInsert, AddSelect, AddSum, AddUpdate or
// AddDelete. Every call collapses to this shape so Transaction can store
// them uniformly; run returns the same (bool, error) contract as the
// five table.Table operations.
type operation struct {
	run func() (bool, error)
}

// Transaction holds an ordered list of bound operations scoped to one
// or more tables. Run executes them sequentially; the first operation
// that returns false causes abort.
type Transaction struct {
	ID uuid.UUID

	ops     []operation
	aborted bool
	err     error
}

// New creates an empty transaction, identified externally by a random
// UUID so logs and TransactionWorker.Stats can name it stably.
func New() *Transaction {
	return &Transaction{ID: uuid.New()}
}

// AddInsert queues tbl.Insert(columns).
func (tx *Transaction) AddInsert(tbl *table.Table, columns []int64) {
	tx.ops = append(tx.ops, operation{run: func() (bool, error) {
		return tbl.Insert(columns)
	}})
}

// AddSelect queues tbl.Select(searchKey, searchColumn, selectedColumns, version),
// storing its result in *out on success.
func (tx *Transaction) AddSelect(tbl *table.Table, searchKey int64, searchColumn int, selectedColumns []bool, version int, out *[]table.Record) {
	tx.ops = append(tx.ops, operation{run: func() (bool, error) {
		recs, err := tbl.Select(searchKey, searchColumn, selectedColumns, version)
		if err != nil {
			return false, err
		}
		*out = recs
		return true, nil
	}})
}

// AddSum queues tbl.Sum(lo, hi, aggColumn, version), storing its result
// in *out on success.
func (tx *Transaction) AddSum(tbl *table.Table, lo, hi int64, aggColumn int, version int, out *int64) {
	tx.ops = append(tx.ops, operation{run: func() (bool, error) {
		sum, err := tbl.Sum(lo, hi, aggColumn, version)
		if err != nil {
			return false, err
		}
		*out = sum
		return true, nil
	}})
}

// AddUpdate queues tbl.Update(key, newColumns).
func (tx *Transaction) AddUpdate(tbl *table.Table, key int64, newColumns []int64) {
	tx.ops = append(tx.ops, operation{run: func() (bool, error) {
		return tbl.Update(key, newColumns)
	}})
}

// AddDelete queues tbl.Delete(key).
func (tx *Transaction) AddDelete(tbl *table.Table, key int64) {
	tx.ops = append(tx.ops, operation{run: func() (bool, error) {
		return tbl.Delete(key)
	}})
}

// Run executes every queued operation in order. It stops at the first
// operation that returns false or a non-nil error, calls abort, and
// returns false; otherwise it calls Commit and returns its result.
func (tx *Transaction) Run() bool {
	for _, op := range tx.ops {
		ok, err := op.run()
		if err != nil {
			tx.err = err
			return tx.abort()
		}
		if !ok {
			return tx.abort()
		}
	}
	return tx.Commit()
}

// abort marks the transaction aborted. There is no rollback: operations
// that already wrote pages stay written.
func (tx *Transaction) abort() bool {
	tx.aborted = true
	return false
}

// Commit returns true and does nothing else. It does not flush any
// buffer pool: pages written by this transaction's operations stay in
// the buffer pool until its CommitWritesToDisk runs (api.Database.Close
// calls it).
func (tx *Transaction) Commit() bool {
	return true
}

// Err returns the error (if any) that caused this transaction to abort.
func (tx *Transaction) Err() error { return tx.err }

// Aborted reports whether Run ended in an abort.
func (tx *Transaction) Aborted() bool { return tx.aborted }

// Stats records one transaction's outcome, keyed by its UUID, as
// reported by TransactionWorker after Join.
type Stats struct {
	ID        uuid.UUID
	Committed bool
}

// TransactionWorker owns a set of transactions and runs them, one at a
// time and in order, on a single goroutine. A worker's own transactions
// are never parallelized against each other; running several workers
// concurrently (each on its own goroutine, via its own Run/Join) is how
// transactions from different workers end up executing at the same
// time.
type TransactionWorker struct {
	transactions []*Transaction
	wg           sync.WaitGroup

	mu    sync.Mutex
	stats []Stats

	numCommitted atomic.Int64
}

// NewWorker creates a worker that will run transactions.
func NewWorker(transactions []*Transaction) *TransactionWorker {
	return &TransactionWorker{transactions: transactions}
}

// Run launches a single goroutine that executes this worker's
// transactions one at a time, in the order passed to NewWorker.
func (w *TransactionWorker) Run() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for _, tx := range w.transactions {
			committed := tx.Run()
			if committed {
				w.numCommitted.Add(1)
			}
			w.mu.Lock()
			w.stats = append(w.stats, Stats{ID: tx.ID, Committed: committed})
			w.mu.Unlock()
		}
	}()
}

// Join blocks until this worker's goroutine, launched by Run, has
// finished running every transaction.
func (w *TransactionWorker) Join() {
	w.wg.Wait()
}

// Result returns the number of transactions that committed.
func (w *TransactionWorker) Result() int64 {
	return w.numCommitted.Load()
}

// Stats returns one Stats entry per finished transaction. Only
// meaningful after Join.
func (w *TransactionWorker) Stats() []Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Stats, len(w.stats))
	copy(out, w.stats)
	return out
}
