// Package logging provides structured logging configuration for pipes,
// stores and the pipectl CLI.
//
// This package wraps log/slog. Components accept a *slog.Logger through an
// option and fall back to Nop() when none is given.
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.ParseLevel("debug"),
//	    Format: logging.FormatJSON,
//	})
//	p := pipe.New(cfg, transport, pipe.WithLogger(logger))
package logging
