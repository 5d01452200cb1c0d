package pipe

import (
	"time"

	"github.com/getmockd/pipeline/pkg/collection"
)

// Observer defines hooks for observability and metrics collection.
// Hooks run on the goroutine that observed the event and must not block.
type Observer interface {
	// OnStart is called when an operation is dispatched to the transport.
	OnStart(collection string, op Operation)

	// OnSuccess is called once delivery of a success is decided, before the
	// success callback runs. Cancelled operations are not reported.
	OnSuccess(collection string, op Operation, duration time.Duration)

	// OnFailure is called once delivery of a failure is decided, before the
	// failure callback runs, including operations rejected before dispatch.
	OnFailure(collection string, op Operation, kind collection.Kind, duration time.Duration)

	// OnCancel is called by Cancel with the number of handles it discarded.
	OnCancel(collection string, discarded int)
}

// NoopObserver is a no-op implementation of Observer for when metrics are disabled.
type NoopObserver struct{}

func (NoopObserver) OnStart(string, Operation)                                   {}
func (NoopObserver) OnSuccess(string, Operation, time.Duration)                  {}
func (NoopObserver) OnFailure(string, Operation, collection.Kind, time.Duration) {}
func (NoopObserver) OnCancel(string, int)                                        {}
