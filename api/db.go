// Package api provides the public entry point into the engine: opening
// a database, creating/dropping tables, and closing it out. It is a
// thin wiring layer — everything it does is delegate into storage,
// table and concurrency.
package api

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kestrelcol/lstore/concurrency"
	"github.com/kestrelcol/lstore/storage"
	"github.com/kestrelcol/lstore/table"
)

// ErrTableExists is returned by CreateTable for a name already in use.
var ErrTableExists = errors.New("lstore: table already exists")

// ErrTableNotFound is returned by DropTable for a name that isn't open.
var ErrTableNotFound = errors.New("lstore: table not found")

// Database is one open instance of the engine: a Disk collaborator, the
// buffer pool and lock manager shared by every table it owns, and the
// set of currently open tables.
type Database struct {
	disk  storage.Disk
	pool  *storage.BufferPool
	locks *concurrency.LockManager

	mu     sync.Mutex
	tables map[string]*table.Table
}

// Open opens (or creates) a database rooted at the filesystem path
// root.
func Open(root string) (*Database, error) {
	disk := storage.NewFileDisk(root)
	if err := disk.CreateDirectory(""); err != nil {
		return nil, fmt.Errorf("lstore: %w", err)
	}
	return newDatabase(disk), nil
}

// OpenMemory creates an entirely in-memory database. The api package's
// own tests use this path.
func OpenMemory() *Database {
	return newDatabase(storage.NewMemDisk())
}

func newDatabase(disk storage.Disk) *Database {
	return &Database{
		disk:   disk,
		pool:   storage.NewBufferPool(disk, 0),
		locks:  concurrency.NewLockManager(),
		tables: make(map[string]*table.Table),
	}
}

// Close flushes every dirty page through the buffer pool. There is no
// file handle to release: FileDisk opens and closes the underlying
// file on every call, and there is no write-ahead log to checkpoint.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.pool.CommitWritesToDisk(); err != nil {
		return fmt.Errorf("lstore: close: %w", err)
	}
	return nil
}

// CreateTable creates and opens a new table named name with numColumns
// columns and keyIndex as its unique key column.
func (db *Database) CreateTable(name string, numColumns, keyIndex int) (*table.Table, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.tables[name]; ok {
		return nil, ErrTableExists
	}
	tbl, err := table.Open(db.pool, db.disk, db.locks, name, numColumns, keyIndex)
	if err != nil {
		return nil, fmt.Errorf("lstore: create table %s: %w", name, err)
	}
	db.tables[name] = tbl
	return tbl, nil
}

// DropTable closes and forgets the table named name. It does not
// reclaim its on-disk pages; there is no vacuum/GC story.
func (db *Database) DropTable(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.tables[name]; !ok {
		return ErrTableNotFound
	}
	delete(db.tables, name)
	return nil
}

// GetTable returns the already-open table named name.
func (db *Database) GetTable(name string) (*table.Table, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	tbl, ok := db.tables[name]
	return tbl, ok
}

// Tables returns the names of every currently open table.
func (db *Database) Tables() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, 0, len(db.tables))
	for name := range db.tables {
		out = append(out, name)
	}
	return out
}
