package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/getmockd/pipeline/pkg/collection"
	"github.com/getmockd/pipeline/pkg/pipe"
	"github.com/getmockd/pipeline/pkg/transport/rest"
)

// collectionConfig builds the selected collection's configuration: the
// manifest declaration when there is one, overridden by flags and env.
func collectionConfig() (*collection.Config, error) {
	if settings.Collection == "" {
		return nil, ErrNoCollection
	}
	var overrides []collection.Option
	if settings.BaseURL != "" {
		overrides = append(overrides, collection.WithBaseURL(settings.BaseURL))
	}
	if settings.IDField != "" {
		overrides = append(overrides, collection.WithIdentityField(settings.IDField))
	}

	var (
		cfg *collection.Config
		err error
	)
	if settings.manifest != nil {
		if _, ok := settings.manifest.Lookup(settings.Collection); ok {
			cfg, err = settings.manifest.Config(settings.Collection, overrides...)
		} else {
			base := []collection.Option{collection.WithBaseURL(settings.manifest.BaseURL)}
			cfg, err = collection.New(settings.Collection, append(base, overrides...)...)
		}
	} else {
		cfg, err = collection.New(settings.Collection, overrides...)
	}
	if err != nil {
		return nil, err
	}
	if cfg.URL() == nil {
		return nil, ErrNoBaseURL
	}
	return cfg, nil
}

// newPipe builds a rest pipe for the selected collection.
func newPipe() (*pipe.Pipe, error) {
	cfg, err := collectionConfig()
	if err != nil {
		return nil, err
	}
	opts := []rest.Option{rest.WithTimeout(settings.Timeout)}
	switch {
	case settings.Secret != "":
		opts = append(opts, rest.WithSigner(settings.Secret, "pipectl", 0))
	case settings.Token != "":
		opts = append(opts, rest.WithToken(settings.Token))
	}
	return pipe.New(cfg, rest.New(opts...), pipe.WithLogger(settings.log)), nil
}

// run starts one operation on a fresh pipe and waits for its outcome.
func run(ctx context.Context, op func(p *pipe.Pipe, ok pipe.SuccessFunc, fail pipe.FailureFunc) *pipe.Handle) (any, error) {
	p, err := newPipe()
	if err != nil {
		return nil, err
	}
	payload, err := pipe.Await(ctx, func(ok pipe.SuccessFunc, fail pipe.FailureFunc) *pipe.Handle {
		return op(p, ok, fail)
	})
	if err != nil {
		return nil, describe(err)
	}
	return payload, nil
}

// describe appends the error's hint, when it has one.
func describe(err error) error {
	var h collection.HintError
	if errors.As(err, &h) && h.Hint() != "" {
		return fmt.Errorf("%w\n  hint: %s", err, h.Hint())
	}
	return err
}
