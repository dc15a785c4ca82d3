// Package booking implements contractor booking workflows over the database
// facade: listing and searching contractors, and claiming or releasing a
// contractor on behalf of a customer.
//
// Booking is the canonical multi-step sequence the engine's locking protocol
// exists for: lock, re-read, decide, update, unlock. The record is always
// re-read under the lock, because the caller's view may be stale by the time
// the lock is granted.
package booking

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.flatdb.dev/core/db"
	"go.flatdb.dev/core/schema"
)

// ErrAlreadyBooked is returned by Book when the contractor's owner field is
// already set. The caller re-reads to present the current state.
var ErrAlreadyBooked = errors.New("record is already booked")

// A Contractor pairs a record with the number under which it is stored.
type Contractor struct {
	RecNo int
	schema.Record
}

// Service implements booking workflows over a database facade.
type Service struct {
	db *db.DB
}

// NewService returns a Service over |d|.
func NewService(d *db.DB) *Service { return &Service{db: d} }

// List returns every live contractor record, in record-number order.
func (s *Service) List() ([]Contractor, error) {
	return s.Search("", "")
}

// Search returns contractors whose name and location fields exactly equal
// |name| and |location|; an empty argument matches any value. The engine's
// Find matches by prefix, so its results are refined here to exact matches.
func (s *Service) Search(name, location string) ([]Contractor, error) {
	var criteria = schema.MatchAll()
	if name != "" {
		criteria[schema.FieldName] = &name
	}
	if location != "" {
		criteria[schema.FieldLocation] = &location
	}

	var found, err = s.db.Find(criteria)
	if err != nil {
		return nil, errors.WithMessage(err, "searching records")
	}

	var contractors []Contractor
	for _, recNo := range found {
		var rec, err = s.db.Read(recNo)
		if errors.Cause(err) == db.ErrNotFound {
			// Another client deleted the record between Find and Read.
			continue
		} else if err != nil {
			return nil, errors.WithMessagef(err, "reading record %d", recNo)
		}

		if name != "" && rec.Name != name {
			continue
		}
		if location != "" && rec.Location != location {
			continue
		}
		contractors = append(contractors, Contractor{RecNo: recNo, Record: rec})
	}
	return contractors, nil
}

// Book claims contractor |recNo| for |ownerID|. It fails with
// ErrAlreadyBooked if another customer holds the contractor, and with cause
// db.ErrNotFound if the record vanished.
func (s *Service) Book(recNo int, ownerID string) error {
	if ownerID == "" || len(ownerID) > schema.Fields[schema.FieldOwner].Length {
		return errors.Errorf("invalid owner ID %q", ownerID)
	}

	return s.withLock(recNo, func(rec schema.Record, cookie uint64) error {
		if rec.IsBooked() {
			return ErrAlreadyBooked
		}
		rec.Owner = ownerID

		if err := s.db.Update(recNo, rec, cookie); err != nil {
			return err
		}
		log.WithFields(log.Fields{"recNo": recNo, "owner": ownerID}).Info("booked record")
		return nil
	})
}

// Release clears the owner field of contractor |recNo|. Releasing a
// contractor which is not booked is a no-op.
func (s *Service) Release(recNo int) error {
	return s.withLock(recNo, func(rec schema.Record, cookie uint64) error {
		if !rec.IsBooked() {
			return nil
		}
		rec.Owner = ""

		if err := s.db.Update(recNo, rec, cookie); err != nil {
			return err
		}
		log.WithFields(log.Fields{"recNo": recNo}).Info("released record")
		return nil
	})
}

// withLock runs |fn| with the lock of |recNo| held and the record's current
// value, and always releases the lock again, whether or not |fn| failed.
func (s *Service) withLock(recNo int, fn func(rec schema.Record, cookie uint64) error) error {
	var cookie, err = s.db.Lock(recNo)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.db.Unlock(recNo, cookie); err != nil {
			log.WithFields(log.Fields{"err": err, "recNo": recNo}).
				Error("failed to unlock record")
		}
	}()

	// Re-read under the lock: the caller's view may be stale.
	var rec, readErr = s.db.Read(recNo)
	if readErr != nil {
		return readErr
	}
	return fn(rec, cookie)
}
