package pipe

import (
	"context"

	"github.com/getmockd/pipeline/pkg/collection"
)

// Operation identifies the kind of remote exchange.
type Operation string

// Operations.
const (
	OpReadAll    Operation = "read-all"
	OpReadOne    Operation = "read-one"
	OpReadParams Operation = "read-params"
	OpSave       Operation = "save"
	OpRemove     Operation = "remove"
)

// Request describes one exchange for a Transport.
type Request struct {
	// Config is the collection being accessed.
	Config *collection.Config
	// Op is the operation kind.
	Op Operation
	// ID is the identity value for read-one and remove.
	ID any
	// Params are the query parameters for read-params.
	Params map[string]string
	// Body is the record for save and remove.
	Body collection.Record
}

// Transport performs the network exchange behind a Pipe. It returns the
// parsed JSON-compatible payload or an error; errors that are not a
// *collection.Error are reported as transport failures.
//
// The ctx passed to Exchange is cancelled when the pipe's Cancel discards
// the operation. Transports should abandon the exchange when it is; results
// returned after cancellation are ignored.
type Transport interface {
	Exchange(ctx context.Context, req *Request) (any, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (any, error)

// Exchange calls f.
func (f TransportFunc) Exchange(ctx context.Context, req *Request) (any, error) {
	return f(ctx, req)
}
