package schema

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// State flags a record slot as live or deleted.
type State uint16

const (
	// StateValid marks a live record slot.
	StateValid State = 0x0000
	// StateDeleted marks a deleted record slot.
	StateDeleted State = 0x8000
)

// IsDeleted returns whether the State is StateDeleted.
func (s State) IsDeleted() bool { return s == StateDeleted }

// Validate returns an error if the State is not a defined flag value.
func (s State) Validate() error {
	switch s {
	case StateValid, StateDeleted:
		return nil
	default:
		return errors.Errorf("invalid state flag (%#06x)", uint16(s))
	}
}

// String returns "VAL" or "DEL", or a hex rendering of an undefined flag.
func (s State) String() string {
	switch s {
	case StateValid:
		return "VAL"
	case StateDeleted:
		return "DEL"
	default:
		return fmt.Sprintf("State<%#06x>", uint16(s))
	}
}

// A Record is one row of the fixed schema. Values carry no trailing
// whitespace; RecordFromFields and DecodeSlot trim it on construction, and
// EncodeSlot re-pads values only at the serialization edge. Records are
// value types: each read of the engine produces a fresh copy, and no Record
// is shared as mutable state across calls.
type Record struct {
	Name        string
	Location    string
	Specialties string
	Size        string
	Rate        string
	Owner       string
}

// RecordFromFields builds a Record from a generic field slice, as presented
// by callers which deal in positional field arrays. Trailing whitespace of
// each value is stripped. An error is returned if |fields| does not hold
// exactly NumFields entries.
func RecordFromFields(fields []string) (Record, error) {
	if len(fields) != NumFields {
		return Record{}, errors.Errorf("invalid field count (expected %d, got %d)", NumFields, len(fields))
	}
	return Record{
		Name:        rtrim(fields[FieldName]),
		Location:    rtrim(fields[FieldLocation]),
		Specialties: rtrim(fields[FieldSpecialties]),
		Size:        rtrim(fields[FieldSize]),
		Rate:        rtrim(fields[FieldRate]),
		Owner:       rtrim(fields[FieldOwner]),
	}, nil
}

// Fields returns the generic field-slice view of the Record, in schema order.
func (r Record) Fields() []string {
	return []string{r.Name, r.Location, r.Specialties, r.Size, r.Rate, r.Owner}
}

// IsBooked returns whether the Record's owner field is set.
func (r Record) IsBooked() bool { return r.Owner != "" }

// EncodeSlot returns the slot serialization of |state| and |rec|: the state
// flag, then each field truncated or space-padded to exactly its declared
// width. Its length is exactly RecordLength.
func EncodeSlot(state State, rec Record) []byte {
	var b = make([]byte, 0, RecordLength)
	b = binary.BigEndian.AppendUint16(b, uint16(state))

	for i, value := range rec.Fields() {
		var l = Fields[i].Length

		if len(value) >= l {
			b = append(b, value[:l]...)
		} else {
			b = append(b, value...)
			for n := l - len(value); n != 0; n-- {
				b = append(b, ' ')
			}
		}
	}
	return b
}

// DecodeSlot parses a serialized slot of exactly RecordLength bytes.
// An undefined state flag is a decode error: the slot cannot be classified
// as either live or deleted, and the caller must treat it as unusable.
func DecodeSlot(b []byte) (State, Record, error) {
	if len(b) != RecordLength {
		return 0, Record{}, errors.Errorf("invalid slot length (expected %d, got %d)", RecordLength, len(b))
	}
	var state = State(binary.BigEndian.Uint16(b[:stateLength]))
	if err := state.Validate(); err != nil {
		return 0, Record{}, err
	}

	var fields = make([]string, 0, NumFields)
	for i, next := 0, stateLength; i != NumFields; i++ {
		var l = Fields[i].Length
		fields = append(fields, string(b[next:next+l]))
		next += l
	}
	var rec, err = RecordFromFields(fields)
	return state, rec, err
}

func rtrim(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }
