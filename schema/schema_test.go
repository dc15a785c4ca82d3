package schema

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestRecordLayoutArithmetic(t *testing.T) {
	// The fixed schema: 2-byte flag + 32 + 64 + 64 + 6 + 8 + 8.
	require.Equal(t, 184, RecordLength)

	require.Equal(t, int64(70), SlotOffset(0))
	require.Equal(t, int64(70+184), SlotOffset(1))
	require.Equal(t, int64(70+3*184), SlotOffset(3))
}

func TestHeaderEncodeThenParse(t *testing.T) {
	var b = EncodeHeader()
	require.Len(t, b, int(HeaderLength))
	require.NoError(t, ParseHeader(bytes.NewReader(b)))
}

func TestHeaderValidationCases(t *testing.T) {
	var b = EncodeHeader()

	// Case: flipped magic cookie.
	var h = append([]byte(nil), b...)
	binary.BigEndian.PutUint32(h[0:], 0x0203)
	var err = ParseHeader(bytes.NewReader(h))
	require.Equal(t, ErrCorrupt, errors.Cause(err))
	require.Regexp(t, `invalid magic cookie \(expected 0x0202, got 0x0203\)`, err)

	// Case: wrong payload offset.
	h = append(h[:0], b...)
	binary.BigEndian.PutUint32(h[4:], 68)
	err = ParseHeader(bytes.NewReader(h))
	require.Equal(t, ErrCorrupt, errors.Cause(err))
	require.Regexp(t, `invalid offset \(expected 70, got 68\)`, err)

	// Case: field count of five rather than six.
	h = append(h[:0], b...)
	binary.BigEndian.PutUint16(h[8:], 5)
	err = ParseHeader(bytes.NewReader(h))
	require.Equal(t, ErrCorrupt, errors.Cause(err))
	require.Regexp(t, `invalid field count \(expected 6, got 5\)`, err)

	// Case: mangled field name ("name" => "nbme").
	h = append(h[:0], b...)
	h[13] = 'b'
	err = ParseHeader(bytes.NewReader(h))
	require.Equal(t, ErrCorrupt, errors.Cause(err))
	require.Regexp(t, `unexpected name of field 0 \(expected "name", got "nbme"\)`, err)

	// Case: wrong field length (name is 32, not 33).
	h = append(h[:0], b...)
	binary.BigEndian.PutUint16(h[16:], 33)
	err = ParseHeader(bytes.NewReader(h))
	require.Equal(t, ErrCorrupt, errors.Cause(err))
	require.Regexp(t, `unexpected length of field 0 \(expected 32, got 33\)`, err)

	// Case: truncated header surfaces a read error, not ErrCorrupt.
	err = ParseHeader(bytes.NewReader(b[:9]))
	require.Error(t, err)
	require.NotEqual(t, ErrCorrupt, errors.Cause(err))
}
