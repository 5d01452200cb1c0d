// Package pipe provides asynchronous CRUD access to one remote collection.
//
// A Pipe performs reads, saves and removes against a named remote endpoint
// through a Transport collaborator (see pkg/transport/rest and
// pkg/transport/loopback). Every operation returns immediately with a Handle;
// the exchange runs on its own goroutine and reports its outcome exactly once,
// on either the success or the failure callback.
//
// Cancellation:
//
// Cancel stops listening. Every operation outstanding when Cancel is called
// is marked cancelled and its callbacks never run. Cancel does not undo work
// already sent to the remote side: a save or remove that was in flight may
// still take effect on the server. Operations started after Cancel are not
// affected.
//
// Ordering:
//
// Operations issued concurrently on one Pipe are neither serialized nor
// ordered; their callbacks may run in any order.
//
// Usage:
//
//	p := pipe.New(cfg, rest.New())
//
//	p.ReadAll(ctx,
//	    func(payload any) { records, _ := pipe.Records(payload) ... },
//	    func(err error) { log.Println(err) },
//	)
//
//	// Blocking convenience
//	payload, err := pipe.Await(ctx, func(ok pipe.SuccessFunc, fail pipe.FailureFunc) *pipe.Handle {
//	    return p.Read(ctx, "42", ok, fail)
//	})
package pipe
