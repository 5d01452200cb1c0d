package pipe

import (
	"context"
	"errors"
	"fmt"

	"github.com/getmockd/pipeline/pkg/collection"
)

// ErrCancelled is returned by Await when the operation was discarded by
// Cancel. Callbacks never receive it.
var ErrCancelled = errors.New("pipe: operation cancelled")

type outcome struct {
	payload any
	err     error
}

// Await starts an operation and blocks until it is delivered, cancelled, or
// ctx is done.
//
//	payload, err := pipe.Await(ctx, func(ok pipe.SuccessFunc, fail pipe.FailureFunc) *pipe.Handle {
//	    return p.ReadAll(ctx, ok, fail)
//	})
func Await(ctx context.Context, start func(SuccessFunc, FailureFunc) *Handle) (any, error) {
	results := make(chan outcome, 1)
	h := start(
		func(payload any) { results <- outcome{payload: payload} },
		func(err error) { results <- outcome{err: err} },
	)

	select {
	case r := <-results:
		return r.payload, r.err
	case <-h.Done():
		select {
		case r := <-results:
			return r.payload, r.err
		default:
			return nil, ErrCancelled
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Records converts a read payload into records. It accepts a JSON array of
// objects, a single object, or nil (no records).
func Records(payload any) ([]collection.Record, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case []collection.Record:
		return v, nil
	case []any:
		out := make([]collection.Record, 0, len(v))
		for i, e := range v {
			rec, err := Record(e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out = append(out, rec)
		}
		return out, nil
	case []map[string]any:
		out := make([]collection.Record, len(v))
		for i, e := range v {
			out[i] = collection.Record(e)
		}
		return out, nil
	default:
		rec, err := Record(payload)
		if err != nil {
			return nil, err
		}
		return []collection.Record{rec}, nil
	}
}

// Record converts a single-record payload.
func Record(payload any) (collection.Record, error) {
	switch v := payload.(type) {
	case collection.Record:
		return v, nil
	case map[string]any:
		return collection.Record(v), nil
	default:
		return nil, collection.ParseFailure(domain, fmt.Errorf("payload of type %T is not a record", payload))
	}
}
