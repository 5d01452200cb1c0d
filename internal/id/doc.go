// Package id provides identity generators for locally stored records.
//
// A store assigns an identity to every record saved without one. The
// generator decides its shape:
//
//   - Counter: monotonic prefixed sequence ("g1", "g2", ...), the default
//   - UUID: random UUID v4 strings (github.com/google/uuid)
//   - ULID: 26-character, time-sortable identifiers
//
// Generators are safe for concurrent use. They only promise uniqueness among
// their own outputs; the store re-draws when a generated value collides with
// an identity a caller supplied explicitly.
package id
