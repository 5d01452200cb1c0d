package store

import (
	"github.com/getmockd/pipeline/pkg/collection"
)

// Store defines the contract of a local record store.
type Store interface {
	// Name returns the collection name.
	Name() string

	// IdentityField returns the record key used as identity.
	IdentityField() string

	// ReadAll returns a snapshot of all records in insertion order.
	ReadAll() []collection.Record

	// Read returns the record with the given identity, or a NotFound error.
	Read(id any) (collection.Record, error)

	// Save replaces the record with the same identity in place, or appends
	// it. Records without identity get a generated one. Returns the stored
	// record.
	Save(rec collection.Record) (collection.Record, error)

	// SaveAll atomically replaces the whole stored sequence.
	SaveAll(recs []collection.Record) error

	// Remove deletes the record with rec's identity. Removing an absent
	// identity is a no-op; a record without identity is InvalidArgument.
	Remove(rec collection.Record) error

	// Reset empties the store.
	Reset()

	// Filter returns the records for which the boolean expression holds.
	Filter(expression string) ([]collection.Record, error)

	// Match returns the records whose fields equal every given parameter.
	Match(params map[string]string) []collection.Record

	// Count returns the number of stored records.
	Count() int

	// IsEmpty reports whether the store holds no records.
	IsEmpty() bool
}
