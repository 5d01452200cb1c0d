package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getmockd/pipeline/pkg/collection"
)

// Persister durably serializes a collection's record sequence. It is the
// collaborator behind a Persistent store.
type Persister interface {
	// Load returns the records last stored for the collection, or none.
	Load(ctx context.Context, name string) ([]collection.Record, error)

	// Store replaces the stored sequence for the collection.
	Store(ctx context.Context, name string, records []collection.Record) error

	// Close releases the persister's resources.
	Close() error
}

// Persistent is a Memory store mirrored through a Persister. The in-memory
// contents are the source of truth: mutations always apply in memory, and a
// persistence failure is logged and kept for Err rather than failing them.
type Persistent struct {
	*Memory

	// writeMu orders mutate-then-store pairs so an older snapshot can never
	// overwrite a newer one.
	writeMu   sync.Mutex
	persister Persister
	log       *slog.Logger

	errMu   sync.Mutex
	lastErr error
}

// OpenPersistent creates a Memory store for cfg and loads its contents from p.
func OpenPersistent(ctx context.Context, cfg *collection.Config, p Persister, opts ...Option) (*Persistent, error) {
	mem, err := NewMemory(cfg, opts...)
	if err != nil {
		return nil, err
	}
	records, err := p.Load(ctx, cfg.Name())
	if err != nil {
		return nil, fmt.Errorf("load collection %q: %w", cfg.Name(), err)
	}
	if err := mem.SaveAll(records); err != nil {
		return nil, fmt.Errorf("load collection %q: %w", cfg.Name(), err)
	}
	return &Persistent{
		Memory:    mem,
		persister: p,
		log:       mem.log,
	}, nil
}

// Save stores rec in memory and persists the new sequence.
func (p *Persistent) Save(rec collection.Record) (collection.Record, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	stored, err := p.Memory.Save(rec)
	if err != nil {
		return nil, err
	}
	p.persist()
	return stored, nil
}

// SaveAll replaces the sequence in memory and persists it.
func (p *Persistent) SaveAll(recs []collection.Record) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := p.Memory.SaveAll(recs); err != nil {
		return err
	}
	p.persist()
	return nil
}

// Remove deletes rec's identity in memory and persists the new sequence.
func (p *Persistent) Remove(rec collection.Record) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if err := p.Memory.Remove(rec); err != nil {
		return err
	}
	p.persist()
	return nil
}

// Reset empties the store and persists the empty sequence.
func (p *Persistent) Reset() {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.Memory.Reset()
	p.persist()
}

// Flush writes the current sequence and returns the persister's error.
func (p *Persistent) Flush(ctx context.Context) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	err := p.persister.Store(ctx, p.Name(), p.Memory.ReadAll())
	p.setErr(err)
	return err
}

// Err returns the error of the most recent persistence attempt, or nil.
func (p *Persistent) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.lastErr
}

// Close flushes and closes the persister.
func (p *Persistent) Close() error {
	flushErr := p.Flush(context.Background())
	closeErr := p.persister.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// persist writes the current sequence. Callers hold writeMu.
func (p *Persistent) persist() {
	err := p.persister.Store(context.Background(), p.Name(), p.Memory.ReadAll())
	if err != nil {
		p.log.Error("failed to persist collection", "collection", p.Name(), "error", err)
	}
	p.setErr(err)
}

func (p *Persistent) setErr(err error) {
	p.errMu.Lock()
	p.lastErr = err
	p.errMu.Unlock()
}

var _ Store = (*Persistent)(nil)
