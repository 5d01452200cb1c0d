// Package loopback implements an in-process pipe transport that serves
// local stores as if they were remote collections.
//
// It behaves like a server speaking the REST conventions: removing an
// absent record fails with NotFound, and the caller's context bounds each
// exchange. It is useful for tests and for wiring pipes to data that lives
// in the same process.
package loopback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getmockd/pipeline/pkg/collection"
	"github.com/getmockd/pipeline/pkg/pipe"
	"github.com/getmockd/pipeline/pkg/store"
)

const domain = "loopback"

// Transport routes exchanges to registered stores by collection name.
type Transport struct {
	mu      sync.RWMutex
	stores  map[string]store.Store
	latency time.Duration
}

// Option configures a Transport.
type Option func(*Transport)

// WithStore registers s under its collection name.
func WithStore(s store.Store) Option {
	return func(t *Transport) {
		t.stores[s.Name()] = s
	}
}

// WithLatency delays every exchange by d, simulating a network round trip.
func WithLatency(d time.Duration) Option {
	return func(t *Transport) {
		t.latency = d
	}
}

// New creates a Transport.
func New(opts ...Option) *Transport {
	t := &Transport{stores: make(map[string]store.Store)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register adds or replaces the store serving s.Name().
func (t *Transport) Register(s store.Store) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stores[s.Name()] = s
}

// Exchange applies req to the store registered for its collection.
func (t *Transport) Exchange(ctx context.Context, req *pipe.Request) (any, error) {
	if err := t.wait(ctx); err != nil {
		return nil, collection.TransportFailure(domain, err)
	}

	name := req.Config.Name()
	t.mu.RLock()
	s, ok := t.stores[name]
	t.mu.RUnlock()
	if !ok {
		e := collection.TransportFailure(domain, fmt.Errorf("no collection %q", name))
		e.Status = 404
		return nil, e
	}

	switch req.Op {
	case pipe.OpReadAll:
		return s.ReadAll(), nil
	case pipe.OpReadOne:
		return s.Read(req.ID)
	case pipe.OpReadParams:
		return s.Match(req.Params), nil
	case pipe.OpSave:
		return s.Save(req.Body)
	case pipe.OpRemove:
		if _, err := s.Read(req.ID); err != nil {
			return nil, err
		}
		return nil, s.Remove(collection.Record{s.IdentityField(): req.ID})
	default:
		return nil, collection.InvalidArgument(domain, "unsupported operation %q", req.Op)
	}
}

func (t *Transport) wait(ctx context.Context) error {
	if t.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(t.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ pipe.Transport = (*Transport)(nil)
