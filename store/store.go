package store

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"go.flatdb.dev/core/schema"
)

// ErrNotOpen is returned by accessors of a Store which has not been opened.
var ErrNotOpen = errors.New("store is not open")

// A Slot is the decoded content of one record slot.
type Slot struct {
	State  schema.State
	Record schema.Record
}

// Store provides positional slot access over one open data file. A Store is
// bound to a single file path for its lifetime: Open is idempotent for that
// path, and fails for any other. All file access is serialized on an
// internal mutex, so concurrent readers and writers never interleave
// positioned operations on the shared handle.
type Store struct {
	fs afero.Fs

	mu   sync.Mutex // Guards |file| and |path|, and serializes access of |file|.
	file afero.File
	path string
}

// NewStore returns an unopened Store backed by |fs|.
func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// Open opens the data file at |path| for read/write access and validates its
// header against the expected schema. Open of the already-opened path is a
// no-op. Open of a second, distinct path fails: a Store is bound to one file
// for its lifetime. A header mismatch fails with cause schema.ErrCorrupt and
// leaves the Store unopened.
func (s *Store) Open(path string) error {
	defer s.mu.Unlock()
	s.mu.Lock()

	if s.file != nil {
		if s.path == path {
			return nil
		}
		return errors.Errorf("store is already open against %s (cannot open %s)", s.path, path)
	}

	var file, err = s.fs.OpenFile(path, os.O_RDWR, 0640)
	if err != nil {
		return errors.WithMessage(err, "opening data file")
	}

	if err = schema.ParseHeader(file); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			log.WithFields(log.Fields{"err": closeErr, "path": path}).
				Warn("failed to close data file after invalid header")
		}
		return errors.WithMessagef(err, "validating header of %s", path)
	}

	s.file, s.path = file, path

	log.WithFields(log.Fields{"path": path}).Info("opened data file")
	return nil
}

// Close closes the data file. The Store remains bound to its path and
// cannot be re-opened.
func (s *Store) Close() error {
	defer s.mu.Unlock()
	s.mu.Lock()

	if s.file == nil {
		return nil
	}
	var err = s.file.Close()
	s.file = nil
	return err
}

// Path returns the file path this Store was opened against, or "".
func (s *Store) Path() string {
	defer s.mu.Unlock()
	s.mu.Lock()
	return s.path
}

// ReadSlot reads and decodes the record slot |recNo|. Trailing whitespace
// of each field value is stripped.
func (s *Store) ReadSlot(recNo int) (schema.State, schema.Record, error) {
	defer s.mu.Unlock()
	s.mu.Lock()

	return s.readSlot(recNo)
}

func (s *Store) readSlot(recNo int) (schema.State, schema.Record, error) {
	if s.file == nil {
		return 0, schema.Record{}, ErrNotOpen
	}

	var buf = make([]byte, schema.RecordLength)
	if _, err := s.file.ReadAt(buf, schema.SlotOffset(recNo)); err != nil {
		return 0, schema.Record{}, errors.WithMessagef(err, "reading slot %d", recNo)
	}
	var state, rec, err = schema.DecodeSlot(buf)
	if err != nil {
		return 0, schema.Record{}, errors.WithMessagef(err, "decoding slot %d", recNo)
	}

	slotReadsTotal.Inc()
	return state, rec, nil
}

// WriteSlot serializes |state| and |rec| and writes them at slot |recNo|.
// Field values are truncated or space-padded to their declared widths.
func (s *Store) WriteSlot(recNo int, state schema.State, rec schema.Record) error {
	defer s.mu.Unlock()
	s.mu.Lock()

	if s.file == nil {
		return ErrNotOpen
	}

	if _, err := s.file.WriteAt(schema.EncodeSlot(state, rec), schema.SlotOffset(recNo)); err != nil {
		return errors.WithMessagef(err, "writing slot %d", recNo)
	}
	slotWritesTotal.Inc()
	return nil
}

// RecordCount returns the number of record slots of the data file, derived
// from its current length.
func (s *Store) RecordCount() (int, error) {
	defer s.mu.Unlock()
	s.mu.Lock()

	return s.recordCount()
}

func (s *Store) recordCount() (int, error) {
	if s.file == nil {
		return 0, ErrNotOpen
	}
	var info, err = s.file.Stat()
	if err != nil {
		return 0, errors.WithMessage(err, "stat of data file")
	}
	return int(info.Size()-int64(schema.HeaderLength)) / schema.RecordLength, nil
}

// ReadAll reads every record slot in ascending order.
func (s *Store) ReadAll() ([]Slot, error) {
	defer s.mu.Unlock()
	s.mu.Lock()

	var n, err = s.recordCount()
	if err != nil {
		return nil, err
	}
	var slots = make([]Slot, 0, n)

	for recNo := 0; recNo != n; recNo++ {
		var state, rec, err = s.readSlot(recNo)
		if err != nil {
			return nil, err
		}
		slots = append(slots, Slot{State: state, Record: rec})
	}
	return slots, nil
}

// IsValidSlot returns whether |recNo| addresses a slot within the data file.
// If the record count cannot be derived, no slot is valid.
func (s *Store) IsValidSlot(recNo int) bool {
	var n, err = s.RecordCount()
	if err != nil {
		log.WithFields(log.Fields{"err": err, "recNo": recNo}).
			Warn("failed to derive record count")
		return false
	}
	return recNo >= 0 && recNo < n
}

// IsDeleted returns whether slot |recNo| is flagged as deleted. A slot which
// cannot be read or decoded is reported as deleted: an unreadable slot is
// unusable, never valid-but-ambiguous.
func (s *Store) IsDeleted(recNo int) bool {
	var state, _, err = s.ReadSlot(recNo)
	if err != nil {
		unreadableSlotsTotal.Inc()
		log.WithFields(log.Fields{"err": err, "recNo": recNo}).
			Warn("failed to read slot (treating as deleted)")
		return true
	}
	return state.IsDeleted()
}

// Initialize creates a new, empty data file at |path| holding the canonical
// header and zero records. It fails if |path| already exists.
func Initialize(fs afero.Fs, path string) error {
	var file, err = fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return errors.WithMessage(err, "creating data file")
	}

	if _, err = file.Write(schema.EncodeHeader()); err == nil {
		err = file.Close()
	} else {
		_ = file.Close()
	}
	return errors.WithMessage(err, "writing header")
}
