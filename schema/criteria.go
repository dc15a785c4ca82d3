package schema

import "strings"

// Criteria is a set of per-field search filters, in schema order. A nil
// entry is a wildcard; a non-nil entry matches field values which begin
// with it (byte-exact and case-sensitive).
//
// Criteria is deliberately a positional slice rather than a typed struct:
// it is the shape in which remote callers present search arguments, and a
// slice of the wrong length must match nothing rather than fail.
type Criteria []*string

// MatchAll returns Criteria which match every record.
func MatchAll() Criteria { return make(Criteria, NumFields) }

// Prefix returns a Criteria entry matching values which begin with |p|.
func Prefix(p string) *string { return &p }

// Matches returns whether |rec| satisfies every non-nil criterion.
// Criteria of a length other than NumFields match nothing.
func (c Criteria) Matches(rec Record) bool {
	if len(c) != NumFields {
		return false
	}
	for i, value := range rec.Fields() {
		if c[i] != nil && !strings.HasPrefix(value, *c[i]) {
			return false
		}
	}
	return true
}
