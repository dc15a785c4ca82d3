package db

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"go.flatdb.dev/core/locks"
	"go.flatdb.dev/core/schema"
	"go.flatdb.dev/core/store"
)

func TestCreateThenRead(t *testing.T) {
	var d = newTestDB(t)

	var rec, err = schema.RecordFromFields([]string{
		"Fred & Sons  ", "Smallville", "Roofing, Plumbing", "12", "$79.00", "",
	})
	require.NoError(t, err)

	recNo, err := d.Create(rec)
	require.NoError(t, err)
	require.Equal(t, 0, recNo)

	// The read yields exactly the created fields, whitespace-stripped.
	got, err := d.Read(recNo)
	require.NoError(t, err)
	require.Equal(t, schema.Record{
		Name:        "Fred & Sons",
		Location:    "Smallville",
		Specialties: "Roofing, Plumbing",
		Size:        "12",
		Rate:        "$79.00",
	}, got)
	require.False(t, got.IsBooked())
}

func TestReadNotFoundCases(t *testing.T) {
	var d = newTestDB(t)
	var recNo = mustCreate(t, d, schema.Record{Name: "only"})

	// Case: out of range.
	var _, err = d.Read(recNo + 1)
	require.Equal(t, ErrNotFound, errors.Cause(err))
	_, err = d.Read(-1)
	require.Equal(t, ErrNotFound, errors.Cause(err))

	// Case: deleted.
	var cookie, lockErr = d.Lock(recNo)
	require.NoError(t, lockErr)
	require.NoError(t, d.Delete(recNo, cookie))
	require.NoError(t, d.Unlock(recNo, cookie))

	_, err = d.Read(recNo)
	require.Equal(t, ErrNotFound, errors.Cause(err))
	require.EqualError(t, err, "record 0 is deleted from the data file: record not found")
}

func TestUpdateRequiresCookie(t *testing.T) {
	var d = newTestDB(t)
	var recNo = mustCreate(t, d, schema.Record{Name: "Moore Power", Rate: "$40.00"})

	var cookie, err = d.Lock(recNo)
	require.NoError(t, err)

	// A wrong cookie never mutates the stored record.
	err = d.Update(recNo, schema.Record{Name: "clobbered"}, cookie+1)
	require.Equal(t, locks.ErrUnauthorized, errors.Cause(err))

	rec, err := d.Read(recNo)
	require.NoError(t, err)
	require.Equal(t, "Moore Power", rec.Name)

	// An update without any lock held at all also fails.
	require.NoError(t, d.Unlock(recNo, cookie))
	err = d.Update(recNo, schema.Record{Name: "clobbered"}, cookie)
	require.Equal(t, locks.ErrUnauthorized, errors.Cause(err))

	// The correct cookie succeeds.
	cookie, err = d.Lock(recNo)
	require.NoError(t, err)
	require.NoError(t, d.Update(recNo, schema.Record{Name: "Moore Power", Rate: "$45.00"}, cookie))
	require.NoError(t, d.Unlock(recNo, cookie))

	rec, err = d.Read(recNo)
	require.NoError(t, err)
	require.Equal(t, "$45.00", rec.Rate)
}

func TestCreateReusesLowestDeletedSlot(t *testing.T) {
	var d = newTestDB(t)

	for _, name := range []string{"a", "b", "c", "d"} {
		mustCreate(t, d, schema.Record{Name: name})
	}
	mustDelete(t, d, 1)
	mustDelete(t, d, 2)

	// The lowest deleted slot is reused first, then the next, then append.
	var recNo, err = d.Create(schema.Record{Name: "e"})
	require.NoError(t, err)
	require.Equal(t, 1, recNo)

	recNo, err = d.Create(schema.Record{Name: "f"})
	require.NoError(t, err)
	require.Equal(t, 2, recNo)

	recNo, err = d.Create(schema.Record{Name: "g"})
	require.NoError(t, err)
	require.Equal(t, 4, recNo)
}

func TestFindCases(t *testing.T) {
	var d = newTestDB(t)

	mustCreate(t, d, schema.Record{Name: "Fred", Location: "Smallville"})
	mustCreate(t, d, schema.Record{Name: "Freddy", Location: "Digitopolis"})
	mustCreate(t, d, schema.Record{Name: "Alfred", Location: "Smallville"})
	mustCreate(t, d, schema.Record{Name: "Fredrick", Location: "Smallville"})
	mustDelete(t, d, 3)

	// Case: all-nil criteria return every live record, ascending, once.
	var found, err = d.Find(schema.MatchAll())
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, found)

	// Case: prefix match. "Fred" matches "Fred" and "Freddy", not "Alfred".
	found, err = d.Find(schema.Criteria{schema.Prefix("Fred"), nil, nil, nil, nil, nil})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, found)

	// Case: conjunction of two criteria.
	found, err = d.Find(schema.Criteria{schema.Prefix("Fred"), schema.Prefix("Small"), nil, nil, nil, nil})
	require.NoError(t, err)
	require.Equal(t, []int{0}, found)

	// Case: no matches is an empty result, not an error.
	found, err = d.Find(schema.Criteria{schema.Prefix("Zed"), nil, nil, nil, nil, nil})
	require.NoError(t, err)
	require.Empty(t, found)

	// Case: criteria of the wrong length yield an empty result.
	found, err = d.Find(schema.Criteria{schema.Prefix("Fred")})
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestLockBlocksSecondCaller(t *testing.T) {
	var d = newTestDB(t)
	var recNo = mustCreate(t, d, schema.Record{Name: "contended"})

	var cookie1, err = d.Lock(recNo)
	require.NoError(t, err)

	var acquired = make(chan uint64)
	go func() {
		var cookie2, err = d.Lock(recNo)
		if err != nil {
			panic(err.Error()) // The locked record is valid; Lock cannot fail.
		}
		acquired <- cookie2
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock returned while the first was held")
	case <-time.After(50 * time.Millisecond):
		// Pass.
	}

	// While record |recNo| is lock-contended, unrelated operations proceed.
	var other = mustCreate(t, d, schema.Record{Name: "unrelated"})
	var _, readErr = d.Read(other)
	require.NoError(t, readErr)

	require.NoError(t, d.Unlock(recNo, cookie1))

	var cookie2 = <-acquired
	require.NotEqual(t, cookie1, cookie2)
	require.NoError(t, d.Unlock(recNo, cookie2))
}

func TestLockOfInvalidRecordIsNotLeaked(t *testing.T) {
	var d = newTestDB(t)
	var recNo = mustCreate(t, d, schema.Record{Name: "doomed"})
	mustDelete(t, d, recNo)

	// Lock validates the record only after the blocking acquire, and must
	// release the just-acquired lock before failing.
	var _, err = d.Lock(recNo)
	require.Equal(t, ErrNotFound, errors.Cause(err))

	_, err = d.Lock(recNo + 5)
	require.Equal(t, ErrNotFound, errors.Cause(err))

	// The slot is reused by the next create, and its lock is free: a fresh
	// Lock returns promptly rather than blocking on a leaked hold.
	require.Equal(t, recNo, mustCreate(t, d, schema.Record{Name: "reborn"}))

	cookie, err := d.Lock(recNo)
	require.NoError(t, err)
	require.NoError(t, d.Unlock(recNo, cookie))
}

func TestConcurrentCreatesAssignDistinctSlots(t *testing.T) {
	var d = newTestDB(t)

	var mu = make(chan struct{}, 1)
	var seen = make(map[int]bool)
	var group errgroup.Group

	for i := 0; i != 24; i++ {
		group.Go(func() error {
			var recNo, err = d.Create(schema.Record{Name: "racer"})
			if err != nil {
				return err
			}
			mu <- struct{}{}
			defer func() { <-mu }()

			if seen[recNo] {
				return errors.Errorf("slot %d assigned twice", recNo)
			}
			seen[recNo] = true
			return nil
		})
	}
	require.NoError(t, group.Wait())
	require.Len(t, seen, 24)
}

func TestBookingCycle(t *testing.T) {
	var d = newTestDB(t)
	var recNo = mustCreate(t, d, schema.Record{Name: "Swanders", Rate: "$75.00"})

	// Full cycle: lock, read, update with an owner, unlock.
	var cookie, err = d.Lock(recNo)
	require.NoError(t, err)

	rec, err := d.Read(recNo)
	require.NoError(t, err)
	require.False(t, rec.IsBooked())

	rec.Owner = "12345678"
	require.NoError(t, d.Update(recNo, rec, cookie))
	require.NoError(t, d.Unlock(recNo, cookie))

	// The record is booked, and its lock is free for the next acquirer.
	rec, err = d.Read(recNo)
	require.NoError(t, err)
	require.True(t, rec.IsBooked())

	cookie, err = d.Lock(recNo)
	require.NoError(t, err)
	require.NoError(t, d.Unlock(recNo, cookie))
}

func TestFacadesShareInjectedLockTable(t *testing.T) {
	var fs = afero.NewMemMapFs()
	require.NoError(t, store.Initialize(fs, "test.db"))

	var files = store.NewStore(fs)
	require.NoError(t, files.Open("test.db"))

	// Two facades over one store and one lock table: a cookie issued by one
	// authorizes operations through the other.
	var table = locks.NewTable()
	var d1, d2 = New(files, table), New(files, table)

	var recNo = mustCreate(t, d1, schema.Record{Name: "shared"})

	cookie, err := d1.Lock(recNo)
	require.NoError(t, err)
	require.NoError(t, d2.Update(recNo, schema.Record{Name: "updated"}, cookie))
	require.NoError(t, d2.Unlock(recNo, cookie))

	// A facade over its own table does not honor the foreign cookie.
	var d3 = New(files, locks.NewTable())
	cookie, err = d1.Lock(recNo)
	require.NoError(t, err)
	require.Equal(t, locks.ErrUnauthorized,
		errors.Cause(d3.Update(recNo, schema.Record{Name: "denied"}, cookie)))
	require.NoError(t, d1.Unlock(recNo, cookie))
}

func newTestDB(t *testing.T) *DB {
	var fs = afero.NewMemMapFs()
	require.NoError(t, store.Initialize(fs, "test.db"))

	var files = store.NewStore(fs)
	require.NoError(t, files.Open("test.db"))

	return New(files, locks.NewTable())
}

func mustCreate(t *testing.T, d *DB, rec schema.Record) int {
	var recNo, err = d.Create(rec)
	require.NoError(t, err)
	return recNo
}

func mustDelete(t *testing.T, d *DB, recNo int) {
	var cookie, err = d.Lock(recNo)
	require.NoError(t, err)
	require.NoError(t, d.Delete(recNo, cookie))
	require.NoError(t, d.Unlock(recNo, cookie))
}
