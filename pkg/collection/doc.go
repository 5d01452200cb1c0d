// Package collection holds the value types shared by pipes and stores.
//
// A collection is a named set of JSON-shaped records on a remote endpoint,
// mirrored (optionally) in a local store. This package defines:
//
//   - Config: immutable collection configuration (name, base URL, identity
//     field, default request parameters)
//   - Record: a single JSON-compatible entity and its identity helpers
//   - Error: the structured error reported by pipes and stores, with a Kind
//     that callers can test with errors.Is
//
// Usage:
//
//	cfg, err := collection.New("users",
//	    collection.WithBaseURL("https://api.example.com/v1"),
//	    collection.WithIdentityField("userId"),
//	)
//
//	rec := collection.Record{"userId": "42", "name": "Alice"}
//	id, ok := rec.Identity(cfg.IdentityField())
//
// Config values never change after New returns; reconfiguration means
// constructing a new Config and new pipes/stores from it.
package collection
