package db

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.flatdb.dev/core/locks"
	"go.flatdb.dev/core/schema"
	"go.flatdb.dev/core/store"
)

// ErrNotFound is the cause of every operation failure due to a record number
// which is out of range or names a deleted slot. It is recoverable: the
// caller re-searches and retries.
var ErrNotFound = errors.New("record not found")

// DB is the database facade over one open file store and one lock table.
// It is safe for concurrent use by any number of goroutines. Both components
// are injected: facades which must share per-record lock state are
// constructed over the same locks.Table.
type DB struct {
	files *store.Store
	locks *locks.Table

	// mu is the whole-engine critical section. Every operation but Lock
	// executes entirely within it, and nothing blocking beyond ordinary
	// local file access ever runs under it.
	mu sync.Mutex
}

// New returns a DB over |files|, which must already be open, and |table|.
func New(files *store.Store, table *locks.Table) *DB {
	return &DB{files: files, locks: table}
}

// Read returns the record at |recNo|, or ErrNotFound if |recNo| is out of
// range or deleted.
func (db *DB) Read(recNo int) (schema.Record, error) {
	defer db.mu.Unlock()
	db.mu.Lock()

	// Validation and the read must be atomic: otherwise another caller
	// could delete the record between them, yielding a dirty read.
	if err := db.validateRecord(recNo); err != nil {
		return schema.Record{}, countOp("read", err)
	}
	var _, rec, err = db.files.ReadSlot(recNo)
	if err != nil {
		return schema.Record{}, countOp("read", errors.WithMessagef(err, "reading record %d", recNo))
	}
	return rec, countOp("read", nil)
}

// Update overwrites the record at |recNo| with |rec|. The caller must hold
// the record's lock and prove it with |cookie|; a mismatch fails with cause
// locks.ErrUnauthorized and mutates nothing.
func (db *DB) Update(recNo int, rec schema.Record, cookie uint64) error {
	defer db.mu.Unlock()
	db.mu.Lock()

	if err := db.validateRecord(recNo); err != nil {
		return countOp("update", err)
	}
	if err := db.locks.Validate(recNo, cookie); err != nil {
		return countOp("update", err)
	}
	return countOp("update", db.files.WriteSlot(recNo, schema.StateValid, rec))
}

// Delete marks the record at |recNo| as deleted, leaving its field bytes as
// last written. The caller must prove lock ownership with |cookie|.
func (db *DB) Delete(recNo int, cookie uint64) error {
	defer db.mu.Unlock()
	db.mu.Lock()

	if err := db.validateRecord(recNo); err != nil {
		return countOp("delete", err)
	}
	if err := db.locks.Validate(recNo, cookie); err != nil {
		return countOp("delete", err)
	}
	var _, rec, err = db.files.ReadSlot(recNo)
	if err != nil {
		return countOp("delete", errors.WithMessagef(err, "reading record %d", recNo))
	}
	return countOp("delete", db.files.WriteSlot(recNo, schema.StateDeleted, rec))
}

// Find returns the numbers of all live records matching |criteria|, in
// ascending order. Criteria of a length other than schema.NumFields match
// nothing. The scan observes a single self-consistent view of every slot.
func (db *DB) Find(criteria schema.Criteria) ([]int, error) {
	defer db.mu.Unlock()
	db.mu.Lock()

	if len(criteria) != schema.NumFields {
		return nil, countOp("find", nil)
	}

	var slots, err = db.files.ReadAll()
	if err != nil {
		return nil, countOp("find", errors.WithMessage(err, "scanning records"))
	}

	var found []int
	for recNo, slot := range slots {
		if slot.State.IsDeleted() {
			continue
		}
		if criteria.Matches(slot.Record) {
			found = append(found, recNo)
		}
	}
	return found, countOp("find", nil)
}

// Create writes |rec| as a new record and returns its number: the lowest
// deleted slot if one exists, and otherwise a slot appended at the end of
// the file. Slot choice and write happen under a single critical-section
// hold, so concurrent creates never double-assign a slot.
func (db *DB) Create(rec schema.Record) (int, error) {
	defer db.mu.Unlock()
	db.mu.Lock()

	var slots, err = db.files.ReadAll()
	if err != nil {
		return 0, countOp("create", errors.WithMessage(err, "scanning for a free slot"))
	}

	var recNo = len(slots)
	for n, slot := range slots {
		if slot.State.IsDeleted() {
			recNo = n
			break
		}
	}

	if err = db.files.WriteSlot(recNo, schema.StateValid, rec); err != nil {
		return 0, countOp("create", errors.WithMessagef(err, "writing record %d", recNo))
	}
	return recNo, countOp("create", nil)
}

// Lock acquires the exclusive lock of record |recNo|, blocking for as long
// as another caller holds it, and returns the cookie which proves ownership
// to Update, Delete, and Unlock.
//
// The blocking acquire necessarily runs outside the critical section (a
// contended Lock must not stall the engine), so the record is validated only
// after it is acquired. If the record vanished in the meantime, the lock is
// released again before Lock fails with ErrNotFound; a lock is never leaked
// on a record which turned out to be invalid.
func (db *DB) Lock(recNo int) (uint64, error) {
	var cookie = db.locks.Acquire(recNo) // May block indefinitely.

	defer db.mu.Unlock()
	db.mu.Lock()

	if err := db.validateRecord(recNo); err != nil {
		if releaseErr := db.locks.Release(recNo, cookie); releaseErr != nil {
			log.WithFields(log.Fields{"err": releaseErr, "recNo": recNo}).
				Error("failed to release lock of invalid record")
		}
		return 0, countOp("lock", err)
	}
	return cookie, countOp("lock", nil)
}

// Unlock releases the lock of record |recNo|, waking one blocked Lock. It
// fails with cause locks.ErrUnauthorized if |cookie| does not prove
// ownership. Unlock requires no critical section beyond what the lock table
// itself provides.
func (db *DB) Unlock(recNo int, cookie uint64) error {
	return countOp("unlock", db.locks.Release(recNo, cookie))
}

// validateRecord confirms |recNo| names an existing, non-deleted slot. It
// must be called with the critical section held, which provides the context
// within which no concurrent modification can invalidate its answer.
func (db *DB) validateRecord(recNo int) error {
	if !db.files.IsValidSlot(recNo) {
		return errors.WithMessagef(ErrNotFound, "record %d does not exist in the data file", recNo)
	}
	if db.files.IsDeleted(recNo) {
		return errors.WithMessagef(ErrNotFound, "record %d is deleted from the data file", recNo)
	}
	return nil
}

func countOp(op string, err error) error {
	if err != nil {
		opsTotal.WithLabelValues(op, statusFail).Inc()
	} else {
		opsTotal.WithLabelValues(op, statusOK).Inc()
	}
	return err
}
