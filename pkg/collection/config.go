package collection

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strings"
)

// Pipe types.
const (
	TypeREST     = "REST"
	TypeLoopback = "LOOPBACK"
)

// Config is the immutable configuration of one collection. It is shared by
// reference between the pipe and store built from it; no method mutates it.
type Config struct {
	name          string
	baseURL       *url.URL
	identityField string
	defaultParams map[string]string
	responseRoot  string
	schema        string
	pipeType      string
}

// Option configures a Config during New.
type Option func(*Config) error

// WithBaseURL sets the base location of the remote endpoint. The collection's
// URL is the base URL joined with its name.
func WithBaseURL(raw string) Option {
	return func(c *Config) error {
		if raw == "" {
			return nil
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid base URL %q: %w", raw, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid base URL %q: scheme and host are required", raw)
		}
		c.baseURL = u
		return nil
	}
}

// WithIdentityField sets the record key used as identity (default "id").
func WithIdentityField(field string) Option {
	return func(c *Config) error {
		if field != "" {
			c.identityField = field
		}
		return nil
	}
}

// WithDefaultParams sets the request parameters used by ReadWithParams when
// the caller passes none. The map is copied.
func WithDefaultParams(params map[string]string) Option {
	return func(c *Config) error {
		c.defaultParams = maps.Clone(params)
		return nil
	}
}

// WithResponseRoot sets a JSONPath (e.g. "$.data") locating the payload
// inside a response envelope.
func WithResponseRoot(path string) Option {
	return func(c *Config) error {
		c.responseRoot = path
		return nil
	}
}

// WithSchema sets a JSON Schema document that records must satisfy before
// they are stored locally.
func WithSchema(schema string) Option {
	return func(c *Config) error {
		c.schema = schema
		return nil
	}
}

// WithType sets the pipe type reported by pipes built from this config.
func WithType(t string) Option {
	return func(c *Config) error {
		if t != "" {
			c.pipeType = strings.ToUpper(t)
		}
		return nil
	}
}

// New creates a Config for the named collection.
func New(name string, opts ...Option) (*Config, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("collection name cannot be empty")
	}
	c := &Config{
		name:          name,
		identityField: DefaultIdentityField,
		defaultParams: map[string]string{},
		pipeType:      TypeREST,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Intended for tests and static
// configuration.
func MustNew(name string, opts ...Option) *Config {
	c, err := New(name, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the collection (endpoint) name.
func (c *Config) Name() string { return c.name }

// IdentityField returns the record key treated as identity.
func (c *Config) IdentityField() string { return c.identityField }

// ResponseRoot returns the JSONPath of the payload inside responses, or "".
func (c *Config) ResponseRoot() string { return c.responseRoot }

// Schema returns the JSON Schema records must satisfy, or "".
func (c *Config) Schema() string { return c.schema }

// Type returns the pipe type ("REST" unless configured otherwise).
func (c *Config) Type() string { return c.pipeType }

// DefaultParams returns a copy of the default request parameters.
func (c *Config) DefaultParams() map[string]string {
	return maps.Clone(c.defaultParams)
}

// BaseURL returns a copy of the base URL, or nil when none is configured.
func (c *Config) BaseURL() *url.URL {
	if c.baseURL == nil {
		return nil
	}
	u := *c.baseURL
	return &u
}

// URL returns the collection endpoint: the base URL with the collection name
// appended as a path segment. It returns nil when no base URL is configured.
func (c *Config) URL() *url.URL {
	if c.baseURL == nil {
		return nil
	}
	return c.baseURL.JoinPath(c.name)
}

// RecordURL returns the endpoint of a single record.
func (c *Config) RecordURL(id any) *url.URL {
	u := c.URL()
	if u == nil {
		return nil
	}
	return u.JoinPath(IdentityKey(id))
}
