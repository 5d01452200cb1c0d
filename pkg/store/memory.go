package store

import (
	"log/slog"
	"sync"

	"github.com/getmockd/pipeline/internal/id"
	"github.com/getmockd/pipeline/pkg/collection"
	"github.com/getmockd/pipeline/pkg/logging"
)

const domain = "store"

// Memory is an in-process Store. One RWMutex guards the record sequence and
// its identity index.
type Memory struct {
	mu      sync.RWMutex
	name    string
	idField string
	records []collection.Record
	index   map[string]int

	gen    id.Generator
	schema *Schema
	log    *slog.Logger
}

// Option configures a Memory store.
type Option func(*Memory)

// WithGenerator sets the identity generator (default: counter "g1", "g2"...).
func WithGenerator(g id.Generator) Option {
	return func(m *Memory) {
		if g != nil {
			m.gen = g
		}
	}
}

// WithSchema validates every saved record against s.
func WithSchema(s *Schema) Option {
	return func(m *Memory) {
		m.schema = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Memory) {
		if l != nil {
			m.log = l
		}
	}
}

// NewMemory creates an empty Memory store for cfg. When cfg carries a JSON
// Schema it is compiled and enforced unless WithSchema overrides it.
func NewMemory(cfg *collection.Config, opts ...Option) (*Memory, error) {
	m := &Memory{
		name:    cfg.Name(),
		idField: cfg.IdentityField(),
		index:   make(map[string]int),
		gen:     id.NewCounter("g"),
		log:     logging.Nop(),
	}
	if cfg.Schema() != "" {
		s, err := CompileSchema(cfg.Name(), cfg.Schema())
		if err != nil {
			return nil, err
		}
		m.schema = s
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Name returns the collection name.
func (m *Memory) Name() string { return m.name }

// IdentityField returns the record key used as identity.
func (m *Memory) IdentityField() string { return m.idField }

// ReadAll returns a deep copy of all records in insertion order.
func (m *Memory) ReadAll() []collection.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return collection.CloneAll(m.records)
}

// Read returns a copy of the record with the given identity.
func (m *Memory) Read(idValue any) (collection.Record, error) {
	key := collection.IdentityKey(idValue)

	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.index[key]
	if !ok {
		return nil, collection.NotFound(domain, m.name, idValue)
	}
	return m.records[i].Clone(), nil
}

// Save stores a copy of rec. A record whose identity matches a stored record
// replaces it at the same position; otherwise it is appended. A record
// without identity gets a generated one.
func (m *Memory) Save(rec collection.Record) (collection.Record, error) {
	if rec == nil {
		return nil, collection.InvalidArgument(domain, "cannot save a nil record")
	}
	stored := rec.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !stored.HasIdentity(m.idField) {
		stored[m.idField] = m.nextID(m.index)
	}
	if err := m.validate(stored); err != nil {
		return nil, err
	}

	key := collection.IdentityKey(stored[m.idField])
	if i, ok := m.index[key]; ok {
		m.records[i] = stored
	} else {
		m.index[key] = len(m.records)
		m.records = append(m.records, stored)
	}
	return stored.Clone(), nil
}

// SaveAll replaces the stored sequence with copies of recs. The new sequence
// is built and swapped in under the write lock, so readers see either the old
// set or the new one. Generated identities avoid every identity in recs.
// When recs repeats an identity, the last occurrence wins and keeps the
// first occurrence's position.
func (m *Memory) SaveAll(recs []collection.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Generated identities must not collide with any explicit identity in
	// recs, including ones that appear later in the input.
	taken := make(map[string]int, len(recs))
	for i, rec := range recs {
		if rec == nil {
			return collection.InvalidArgument(domain, "record %d is nil", i)
		}
		if v, ok := rec.Identity(m.idField); ok {
			taken[collection.IdentityKey(v)] = i
		}
	}

	records := make([]collection.Record, 0, len(recs))
	index := make(map[string]int, len(recs))
	for _, rec := range recs {
		stored := rec.Clone()
		if !stored.HasIdentity(m.idField) {
			v := m.nextID(taken)
			taken[v] = -1
			stored[m.idField] = v
		}
		if err := m.validate(stored); err != nil {
			return err
		}
		key := collection.IdentityKey(stored[m.idField])
		if j, ok := index[key]; ok {
			records[j] = stored
			continue
		}
		index[key] = len(records)
		records = append(records, stored)
	}

	m.records = records
	m.index = index
	return nil
}

// Remove deletes the record carrying rec's identity.
func (m *Memory) Remove(rec collection.Record) error {
	idValue, ok := rec.Identity(m.idField)
	if !ok {
		return collection.InvalidArgument(domain, "record has no value for identity field %q", m.idField)
	}
	key := collection.IdentityKey(idValue)

	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[key]
	if !ok {
		return nil
	}
	m.records = append(m.records[:i], m.records[i+1:]...)
	delete(m.index, key)
	for j := i; j < len(m.records); j++ {
		m.index[collection.IdentityKey(m.records[j][m.idField])] = j
	}
	return nil
}

// Reset removes all records.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.index = make(map[string]int)
}

// Count returns the number of stored records.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// IsEmpty reports whether the store holds no records.
func (m *Memory) IsEmpty() bool {
	return m.Count() == 0
}

// Match returns copies of the records whose fields equal every parameter.
// Values are compared by their canonical identity form, so the parameter
// "1" matches the number 1.
func (m *Memory) Match(params map[string]string) []collection.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]collection.Record, 0, len(m.records))
	for _, rec := range m.records {
		if matchParams(rec, params) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func matchParams(rec collection.Record, params map[string]string) bool {
	for k, want := range params {
		v, ok := rec[k]
		if !ok || collection.IdentityKey(v) != want {
			return false
		}
	}
	return true
}

// nextID draws identities until one is unused in taken. Callers hold m.mu.
func (m *Memory) nextID(taken map[string]int) string {
	for {
		v := m.gen.Next()
		if _, used := taken[v]; !used {
			return v
		}
		m.log.Debug("generated identity already in use, drawing again", "collection", m.name, "id", v)
	}
}

func (m *Memory) validate(rec collection.Record) error {
	if m.schema == nil {
		return nil
	}
	return m.schema.Validate(rec)
}

var _ Store = (*Memory)(nil)
