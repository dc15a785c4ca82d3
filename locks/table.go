package locks

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
)

// ErrUnauthorized is returned by Release and Validate when the record is not
// locked, or is locked under a cookie other than the one presented.
var ErrUnauthorized = errors.New("invalid lock cookie")

// Table maps record numbers to per-record exclusive locks. Entries are
// created lazily on first Acquire of a record number and retained for the
// lifetime of the Table: record-number space is small and heavily reused,
// and never removing entries keeps the locking protocol simple.
//
// The zero-valued Table is ready for use.
type Table struct {
	mu      sync.Mutex // Guards |entries|. At most one entry per record number is ever created.
	entries map[int]*recordLock
}

// NewTable returns an empty lock Table.
func NewTable() *Table { return new(Table) }

// Acquire obtains the exclusive lock of record |recNo|, blocking for as long
// as another caller holds it, and returns a new cookie which proves
// ownership to Release, Validate, and operations which require them.
//
// Acquire takes no position on whether |recNo| names a live record; that
// validation belongs to the caller, after Acquire returns.
func (t *Table) Acquire(recNo int) uint64 {
	return t.entry(recNo).acquire()
}

// Release releases the lock of record |recNo|, waking one blocked Acquire.
// It fails with cause ErrUnauthorized if the record is not locked or if
// |cookie| is not the cookie under which it was locked.
func (t *Table) Release(recNo int, cookie uint64) error {
	if err := t.entry(recNo).release(cookie); err != nil {
		authFailuresTotal.Inc()
		return errors.WithMessagef(err, "releasing record %d", recNo)
	}
	return nil
}

// Validate confirms that record |recNo| is currently locked under |cookie|.
// It has no side effects, and fails with cause ErrUnauthorized otherwise.
func (t *Table) Validate(recNo int, cookie uint64) error {
	defer t.mu.Unlock()
	t.mu.Lock()

	var entry, ok = t.entries[recNo]
	if !ok {
		authFailuresTotal.Inc()
		return errors.WithMessagef(ErrUnauthorized, "record %d was never locked", recNo)
	}
	if err := entry.validate(cookie); err != nil {
		authFailuresTotal.Inc()
		return errors.WithMessagef(err, "validating record %d", recNo)
	}
	return nil
}

// entry returns the lock of |recNo|, lazily creating it. Lazy creation is
// serialized on the Table mutex so that concurrent first-touch of a record
// number resolves to a single entry.
func (t *Table) entry(recNo int) *recordLock {
	defer t.mu.Unlock()
	t.mu.Lock()

	var entry, ok = t.entries[recNo]
	if !ok {
		entry = newRecordLock()
		if t.entries == nil {
			t.entries = make(map[int]*recordLock)
		}
		t.entries[recNo] = entry
	}
	return entry
}

// recordLock is the exclusive lock of a single record number.
type recordLock struct {
	mu       sync.Mutex
	released sync.Cond // Signaled on each release of the lock.
	locked   bool
	cookie   uint64
}

func newRecordLock() *recordLock {
	var l = new(recordLock)
	l.released.L = &l.mu
	return l
}

func (l *recordLock) acquire() uint64 {
	defer l.mu.Unlock()
	l.mu.Lock()

	// Re-check the predicate on each wake: a signal is a hint that the lock
	// may be free, not a hand-off, and wakeups may be spurious.
	for l.locked {
		contendedAcquiresTotal.Inc()
		l.released.Wait()
	}
	l.locked = true
	l.cookie = newCookie()

	acquiresTotal.Inc()
	return l.cookie
}

func (l *recordLock) release(cookie uint64) error {
	defer l.mu.Unlock()
	l.mu.Lock()

	if !l.locked || l.cookie != cookie {
		return ErrUnauthorized
	}
	l.locked = false
	l.cookie = 0

	l.released.Signal()
	return nil
}

func (l *recordLock) validate(cookie uint64) error {
	defer l.mu.Unlock()
	l.mu.Lock()

	if !l.locked || l.cookie != cookie {
		return ErrUnauthorized
	}
	return nil
}

// newCookie returns an unpredictable 64-bit lock cookie.
func newCookie() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err.Error()) // The system entropy source cannot fail.
	}
	return binary.BigEndian.Uint64(b[:])
}
