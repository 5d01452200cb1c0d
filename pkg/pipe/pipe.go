package pipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getmockd/pipeline/pkg/collection"
	"github.com/getmockd/pipeline/pkg/logging"
)

const domain = "pipe"

// Resource is the asynchronous client-side handle to one remote collection.
// Pipe implements it; alternative implementations (fakes, decorators) can be
// substituted wherever a Resource is accepted.
type Resource interface {
	// Config returns the collection configuration.
	Config() *collection.Config

	// Type returns the pipe type, e.g. "REST".
	Type() string

	// ReadAll reads the whole collection.
	ReadAll(ctx context.Context, success SuccessFunc, failure FailureFunc) *Handle

	// Read reads the record with the given identity.
	Read(ctx context.Context, id any, success SuccessFunc, failure FailureFunc) *Handle

	// ReadWithParams reads the records matching params, or the collection's
	// default parameters when params is empty.
	ReadWithParams(ctx context.Context, params map[string]string, success SuccessFunc, failure FailureFunc) *Handle

	// Save creates or updates rec; the remote decides which.
	Save(ctx context.Context, rec collection.Record, success SuccessFunc, failure FailureFunc) *Handle

	// Remove deletes rec, which must carry an identity value.
	Remove(ctx context.Context, rec collection.Record, success SuccessFunc, failure FailureFunc) *Handle

	// Cancel discards every operation outstanding at the time of the call.
	Cancel()
}

// Pipe is the standard Resource. It dispatches each operation to its
// Transport on a separate goroutine and tracks the outstanding handles.
type Pipe struct {
	cfg       *collection.Config
	transport Transport
	log       *slog.Logger
	observer  Observer
	exec      func(func())

	seq         atomic.Uint64
	mu          sync.Mutex
	outstanding map[uint64]*Handle
}

// Option configures a Pipe.
type Option func(*Pipe)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipe) {
		if l != nil {
			p.log = l
		}
	}
}

// WithObserver sets the observer notified of operation outcomes.
func WithObserver(o Observer) Option {
	return func(p *Pipe) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithExecutor sets how exchanges are run. The default starts a goroutine
// per operation; exec must not run f on the caller's goroutine before
// returning if callers rely on non-blocking operations.
func WithExecutor(exec func(f func())) Option {
	return func(p *Pipe) {
		if exec != nil {
			p.exec = exec
		}
	}
}

// New creates a Pipe for cfg using transport t.
func New(cfg *collection.Config, t Transport, opts ...Option) *Pipe {
	p := &Pipe{
		cfg:         cfg,
		transport:   t,
		log:         logging.Nop(),
		observer:    NoopObserver{},
		exec:        func(f func()) { go f() },
		outstanding: make(map[uint64]*Handle),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.ForCollection(p.log, domain, cfg.Name())
	return p
}

// Config returns the collection configuration.
func (p *Pipe) Config() *collection.Config { return p.cfg }

// Type returns the pipe type from the configuration.
func (p *Pipe) Type() string { return p.cfg.Type() }

// Outstanding returns the number of operations not yet delivered or
// cancelled.
func (p *Pipe) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outstanding)
}

// ReadAll reads the whole collection.
func (p *Pipe) ReadAll(ctx context.Context, success SuccessFunc, failure FailureFunc) *Handle {
	return p.start(ctx, &Request{Config: p.cfg, Op: OpReadAll}, success, failure)
}

// Read reads the record with the given identity. A missing identity fails
// with InvalidArgument before any exchange.
func (p *Pipe) Read(ctx context.Context, id any, success SuccessFunc, failure FailureFunc) *Handle {
	if collection.IdentityKey(id) == "" {
		return p.reject(OpReadOne, collection.InvalidArgument(domain, "read requires an identity value"), failure)
	}
	return p.start(ctx, &Request{Config: p.cfg, Op: OpReadOne, ID: id}, success, failure)
}

// ReadWithParams reads the records matching params. When params is empty the
// collection's default parameters are sent instead.
func (p *Pipe) ReadWithParams(ctx context.Context, params map[string]string, success SuccessFunc, failure FailureFunc) *Handle {
	if len(params) == 0 {
		params = p.cfg.DefaultParams()
	} else {
		cp := make(map[string]string, len(params))
		for k, v := range params {
			cp[k] = v
		}
		params = cp
	}
	return p.start(ctx, &Request{Config: p.cfg, Op: OpReadParams, Params: params}, success, failure)
}

// Save creates or updates rec. The record is copied before dispatch.
func (p *Pipe) Save(ctx context.Context, rec collection.Record, success SuccessFunc, failure FailureFunc) *Handle {
	if rec == nil {
		return p.reject(OpSave, collection.InvalidArgument(domain, "cannot save a nil record"), failure)
	}
	body := rec.Clone()
	id, _ := body.Identity(p.cfg.IdentityField())
	return p.start(ctx, &Request{Config: p.cfg, Op: OpSave, ID: id, Body: body}, success, failure)
}

// Remove deletes rec. A record without an identity value fails with
// InvalidArgument synchronously: failure runs before Remove returns and the
// transport is never called.
func (p *Pipe) Remove(ctx context.Context, rec collection.Record, success SuccessFunc, failure FailureFunc) *Handle {
	id, ok := rec.Identity(p.cfg.IdentityField())
	if !ok {
		err := collection.InvalidArgument(domain, "remove requires a value for identity field %q", p.cfg.IdentityField())
		return p.reject(OpRemove, err, failure)
	}
	return p.start(ctx, &Request{Config: p.cfg, Op: OpRemove, ID: id, Body: rec.Clone()}, success, failure)
}

// Cancel marks every outstanding handle cancelled so none of their callbacks
// run, and cancels their exchange contexts. The remote side is not told:
// a save or remove already sent may still be applied.
func (p *Pipe) Cancel() {
	p.mu.Lock()
	handles := make([]*Handle, 0, len(p.outstanding))
	for _, h := range p.outstanding {
		handles = append(handles, h)
	}
	p.outstanding = make(map[uint64]*Handle)
	p.mu.Unlock()

	n := 0
	for _, h := range handles {
		if h.markCancelled() {
			n++
		}
	}
	if n > 0 {
		p.log.Debug("cancelled outstanding operations", "count", n)
	}
	p.observer.OnCancel(p.cfg.Name(), n)
}

func (p *Pipe) start(ctx context.Context, req *Request, success SuccessFunc, failure FailureFunc) *Handle {
	if ctx == nil {
		ctx = context.Background()
	}
	opCtx, cancel := context.WithCancel(ctx)
	h := newHandle(p.seq.Add(1), req.Op, success, failure, cancel)

	p.mu.Lock()
	p.outstanding[h.id] = h
	p.mu.Unlock()

	p.log.Debug("dispatching operation", "op", req.Op, "handle", h.id)
	p.observer.OnStart(p.cfg.Name(), req.Op)
	p.exec(func() { p.run(opCtx, h, req) })
	return h
}

func (p *Pipe) run(ctx context.Context, h *Handle, req *Request) {
	began := time.Now()
	payload, err := p.exchange(ctx, req)
	elapsed := time.Since(began)

	p.mu.Lock()
	delete(p.outstanding, h.id)
	p.mu.Unlock()

	delivered := h.deliver(payload, err, func() {
		if err != nil {
			p.log.Warn("operation failed", "op", req.Op, "handle", h.id, "error", err)
			p.observer.OnFailure(p.cfg.Name(), req.Op, collection.KindOf(err), elapsed)
			return
		}
		p.log.Debug("operation delivered", "op", req.Op, "handle", h.id, "duration", elapsed)
		p.observer.OnSuccess(p.cfg.Name(), req.Op, elapsed)
	})
	if !delivered {
		p.log.Debug("completion suppressed by cancel", "op", req.Op, "handle", h.id)
	}
}

// exchange calls the transport and normalizes its error. A panicking
// transport is reported as a transport failure rather than crashing the
// process from a background goroutine.
func (p *Pipe) exchange(ctx context.Context, req *Request) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = collection.TransportFailure(domain, fmt.Errorf("transport panic: %v", r))
		}
	}()

	payload, err = p.transport.Exchange(ctx, req)
	if err == nil {
		return payload, nil
	}
	var cerr *collection.Error
	if errors.As(err, &cerr) {
		return nil, err
	}
	return nil, collection.TransportFailure(domain, err)
}

// reject finishes an operation that failed validation. The failure callback
// runs on the caller's goroutine and the transport is not involved.
func (p *Pipe) reject(op Operation, err error, failure FailureFunc) *Handle {
	h := newHandle(p.seq.Add(1), op, nil, failure, nil)
	h.deliver(nil, err, func() {
		p.log.Debug("operation rejected", "op", op, "error", err)
		p.observer.OnFailure(p.cfg.Name(), op, collection.KindOf(err), 0)
	})
	return h
}

var _ Resource = (*Pipe)(nil)
