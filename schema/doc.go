// Package schema describes the fixed record layout of a flatdb data file:
// the expected header, the ordered set of fixed-width fields, and the byte
// arithmetic which maps a record number to its file offset.
//
// The package also implements the byte-serialization edge of the engine.
// Everywhere else records are the compile-time-typed Record struct; only
// EncodeSlot, DecodeSlot and the header codec deal in raw field bytes.
// All routines are pure and the package holds no state.
package schema
