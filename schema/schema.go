package schema

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrCorrupt is the cause of every header-validation failure. The wrapping
// error names the expected versus actual value which failed to validate.
var ErrCorrupt = errors.New("corrupt data file")

const (
	// MagicCookie is the fixed constant which must begin a data file.
	MagicCookie uint32 = 0x0202
	// HeaderLength is the fixed byte offset at which record slots begin.
	HeaderLength uint32 = 70
	// NumFields is the fixed number of fields of a record.
	NumFields = 6
)

// A Field describes one fixed-width column of the record layout.
type Field struct {
	Name   string
	Length int
}

// Fields is the expected schema, in on-disk order. A data file header must
// declare exactly this field set or it fails validation.
var Fields = [NumFields]Field{
	{Name: "name", Length: 32},
	{Name: "location", Length: 64},
	{Name: "specialties", Length: 64},
	{Name: "size", Length: 6},
	{Name: "rate", Length: 8},
	{Name: "owner", Length: 8},
}

// Indices of each schema field within a generic field slice.
const (
	FieldName = iota
	FieldLocation
	FieldSpecialties
	FieldSize
	FieldRate
	FieldOwner
)

// stateLength is the byte size of the per-slot state flag.
const stateLength = 2

// RecordLength is the byte size of one record slot: the state flag plus
// every field at its declared width.
var RecordLength = func() int {
	var n = stateLength
	for _, f := range Fields {
		n += f.Length
	}
	return n
}()

// SlotOffset returns the byte offset of record |recNo| within a data file.
func SlotOffset(recNo int) int64 {
	return int64(HeaderLength) + int64(recNo)*int64(RecordLength)
}

// ParseHeader reads a data file header from |r| and validates it against the
// expected schema. Validation failures return an error with cause ErrCorrupt.
// Read failures return the underlying error.
func ParseHeader(r io.Reader) error {
	var magic, offset, err = parseScalars(r)
	if err != nil {
		return err
	} else if magic != MagicCookie {
		return errors.WithMessagef(ErrCorrupt, "invalid magic cookie (expected %#06x, got %#06x)", MagicCookie, magic)
	} else if offset != HeaderLength {
		return errors.WithMessagef(ErrCorrupt, "invalid offset (expected %d, got %d)", HeaderLength, offset)
	}

	var fieldCount uint16
	if err = binary.Read(r, binary.BigEndian, &fieldCount); err != nil {
		return errors.WithMessage(err, "reading field count")
	} else if fieldCount != NumFields {
		return errors.WithMessagef(ErrCorrupt, "invalid field count (expected %d, got %d)", NumFields, fieldCount)
	}

	for i, expect := range Fields {
		var nameLen uint16
		if err = binary.Read(r, binary.BigEndian, &nameLen); err != nil {
			return errors.WithMessagef(err, "reading name length of field %d", i)
		}
		var name = make([]byte, nameLen)
		if _, err = io.ReadFull(r, name); err != nil {
			return errors.WithMessagef(err, "reading name of field %d", i)
		} else if string(name) != expect.Name {
			return errors.WithMessagef(ErrCorrupt, "unexpected name of field %d (expected %q, got %q)", i, expect.Name, name)
		}
		var fieldLen uint16
		if err = binary.Read(r, binary.BigEndian, &fieldLen); err != nil {
			return errors.WithMessagef(err, "reading length of field %d", i)
		} else if int(fieldLen) != expect.Length {
			return errors.WithMessagef(ErrCorrupt, "unexpected length of field %d (expected %d, got %d)", i, expect.Length, fieldLen)
		}
	}
	return nil
}

func parseScalars(r io.Reader) (magic, offset uint32, err error) {
	if err = binary.Read(r, binary.BigEndian, &magic); err != nil {
		err = errors.WithMessage(err, "reading magic cookie")
	} else if err = binary.Read(r, binary.BigEndian, &offset); err != nil {
		err = errors.WithMessage(err, "reading offset")
	}
	return
}

// EncodeHeader returns the canonical header of an empty data file. Its
// length is exactly HeaderLength.
func EncodeHeader() []byte {
	var b = make([]byte, 0, HeaderLength)
	b = binary.BigEndian.AppendUint32(b, MagicCookie)
	b = binary.BigEndian.AppendUint32(b, HeaderLength)
	b = binary.BigEndian.AppendUint16(b, NumFields)

	for _, f := range Fields {
		b = binary.BigEndian.AppendUint16(b, uint16(len(f.Name)))
		b = append(b, f.Name...)
		b = binary.BigEndian.AppendUint16(b, uint16(f.Length))
	}
	if len(b) != int(HeaderLength) {
		panic("header length mismatch")
	}
	return b
}
