// Package file provides a JSON-file implementation of store.Persister.
// Each collection is kept in its own file, {dir}/{collection}.json.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/getmockd/pipeline/pkg/collection"
	"github.com/getmockd/pipeline/pkg/logging"
	"github.com/getmockd/pipeline/pkg/store"
)

// Current data format version for migration support
const dataVersion = 1

// ErrUnsupportedVersion is returned when a file was written by a newer
// format.
var ErrUnsupportedVersion = errors.New("unsupported data version")

// storeData is the on-disk envelope.
type storeData struct {
	Version    int                 `json:"version"`
	Collection string              `json:"collection"`
	Records    []collection.Record `json:"records"`
}

// Persister stores collections as JSON files in a directory.
type Persister struct {
	dir string
	mu  sync.Mutex
	log *slog.Logger
}

// Option configures a Persister.
type Option func(*Persister)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Persister) {
		if l != nil {
			p.log = l
		}
	}
}

// New creates a Persister rooted at dir, creating it when missing.
func New(dir string, opts ...Option) (*Persister, error) {
	if dir == "" {
		return nil, errors.New("data directory cannot be empty")
	}
	// Ensure directory exists with secure permissions (0700)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	p := &Persister{dir: dir, log: logging.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Path returns the file backing the named collection.
func (p *Persister) Path(name string) string {
	return filepath.Join(p.dir, fileName(name))
}

// Load reads the named collection. A missing file is an empty collection.
func (p *Persister) Load(_ context.Context, name string) ([]collection.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p.Path(name), err)
	}
	if stored.Version > dataVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, stored.Version)
	}
	p.log.Debug("loaded collection", "collection", name, "records", len(stored.Records))
	return stored.Records, nil
}

// Store replaces the named collection's file with records.
func (p *Persister) Store(_ context.Context, name string, records []collection.Record) error {
	if records == nil {
		records = []collection.Record{}
	}
	data, err := json.MarshalIndent(storeData{
		Version:    dataVersion,
		Collection: name,
		Records:    records,
	}, "", "  ")
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Atomic write: write to temp file, then rename
	dataFile := p.Path(name)
	tmpFile := dataFile + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpFile, dataFile); err != nil {
		_ = os.Remove(tmpFile) // Clean up temp file on failure
		return err
	}
	return nil
}

// Close is a no-op; files are written synchronously.
func (p *Persister) Close() error { return nil }

// fileName maps a collection name to a file name that cannot escape the
// data directory.
func fileName(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return r.Replace(name) + ".json"
}

var _ store.Persister = (*Persister)(nil)
