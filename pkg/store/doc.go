// Package store provides local record stores for collections.
//
// A Store holds an ordered sequence of records in which no two records share
// an identity value. Stores are synchronous and safe for concurrent use: every
// mutation is exclusive with every other operation, and readers receive deep
// copies that later mutations do not affect.
//
// Core Types:
//
//   - Store: the interface implemented by all local stores
//   - Memory: in-process store, the source of truth during a process lifetime
//   - Persistent: a Memory whose contents are mirrored through a Persister
//     (see the file and sqlite subpackages)
//
// Identity:
//
// Records saved without an identity value get one from the store's
// generator (internal/id; "g1", "g2", ... by default). Generated values are
// re-drawn until they do not collide with any stored identity.
//
// Usage:
//
//	cfg := collection.MustNew("users")
//	s, _ := store.NewMemory(cfg)
//
//	rec, _ := s.Save(collection.Record{"name": "a"})   // rec["id"] == "g1"
//	_, _ = s.Save(collection.Record{"id": "g1", "name": "b"})
//	_ = s.Remove(collection.Record{"id": "g1"})
//	_, err := s.Read("g1")                               // collection.ErrNotFound
//
//	adults, _ := s.Filter(`age >= 18`)
package store
