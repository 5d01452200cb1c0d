package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ohler55/ojg/jp"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/pipeline/internal/id"
	"github.com/getmockd/pipeline/pkg/collection"
)

// Common errors for manifest loading.
var (
	ErrFileNotFound      = errors.New("manifest file not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrEmptyFile         = errors.New("manifest file is empty")
	ErrInvalidJSON       = errors.New("invalid JSON syntax")
	ErrInvalidYAML       = errors.New("invalid YAML syntax")
	ErrInvalidTOML       = errors.New("invalid TOML syntax")
	ErrUnknownFormat     = errors.New("unknown manifest format")
	ErrUnknownCollection = errors.New("unknown collection")
)

// Manifest is a set of collection declarations.
type Manifest struct {
	BaseURL     string           `json:"baseURL,omitempty" yaml:"baseURL,omitempty" toml:"baseURL,omitempty"`
	Collections []CollectionSpec `json:"collections" yaml:"collections" toml:"collections"`
}

// CollectionSpec declares one collection.
type CollectionSpec struct {
	Name          string            `json:"name" yaml:"name" toml:"name"`
	Type          string            `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
	BaseURL       string            `json:"baseURL,omitempty" yaml:"baseURL,omitempty" toml:"baseURL,omitempty"`
	IdentityField string            `json:"identityField,omitempty" yaml:"identityField,omitempty" toml:"identityField,omitempty"`
	ResponseRoot  string            `json:"responseRoot,omitempty" yaml:"responseRoot,omitempty" toml:"responseRoot,omitempty"`
	Params        map[string]string `json:"params,omitempty" yaml:"params,omitempty" toml:"params,omitempty"`
	Schema        string            `json:"schema,omitempty" yaml:"schema,omitempty" toml:"schema,omitempty"`
	// Generator names the identity generator used when the collection is
	// served locally: counter (default), uuid or ulid.
	Generator string `json:"generator,omitempty" yaml:"generator,omitempty" toml:"generator,omitempty"`
}

// LoadManifest reads a manifest, detecting the format from the extension.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".toml":
		return ParseTOML(data)
	case ".json":
		return ParseJSON(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}

// ParseYAML parses a YAML manifest.
func ParseYAML(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &m, m.Validate()
}

// ParseTOML parses a TOML manifest.
func ParseTOML(data []byte) (*Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTOML, err)
	}
	return &m, m.Validate()
}

// ParseJSON parses a JSON manifest.
func ParseJSON(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return &m, m.Validate()
}

// Validate checks that every collection is named once and builds a valid
// configuration.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Collections))
	var errs []error
	for i, spec := range m.Collections {
		if strings.TrimSpace(spec.Name) == "" {
			errs = append(errs, fmt.Errorf("collections[%d]: name is required", i))
			continue
		}
		if seen[spec.Name] {
			errs = append(errs, fmt.Errorf("collections[%d]: duplicate collection %q", i, spec.Name))
			continue
		}
		seen[spec.Name] = true
		if _, err := m.build(spec); err != nil {
			errs = append(errs, fmt.Errorf("collections[%d] %q: %w", i, spec.Name, err))
		}
		if spec.ResponseRoot != "" {
			if _, err := jp.ParseString(spec.ResponseRoot); err != nil {
				errs = append(errs, fmt.Errorf("collections[%d] %q: invalid responseRoot: %w", i, spec.Name, err))
			}
		}
		if _, err := id.ByName(spec.Generator); err != nil {
			errs = append(errs, fmt.Errorf("collections[%d] %q: %w", i, spec.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Names returns the declared collection names, sorted.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Collections))
	for _, spec := range m.Collections {
		names = append(names, spec.Name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the spec of the named collection.
func (m *Manifest) Lookup(name string) (CollectionSpec, bool) {
	for _, spec := range m.Collections {
		if spec.Name == name {
			return spec, true
		}
	}
	return CollectionSpec{}, false
}

// Config builds the configuration of the named collection. extra options
// are applied after the manifest's, so they take precedence.
func (m *Manifest) Config(name string, extra ...collection.Option) (*collection.Config, error) {
	spec, ok := m.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return m.build(spec, extra...)
}

func (m *Manifest) build(spec CollectionSpec, extra ...collection.Option) (*collection.Config, error) {
	return collection.New(spec.Name, append(spec.Options(m.BaseURL), extra...)...)
}

// Options converts the spec to collection options. defaultBaseURL is used
// when the spec has none.
func (s CollectionSpec) Options(defaultBaseURL string) []collection.Option {
	var opts []collection.Option
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if baseURL != "" {
		opts = append(opts, collection.WithBaseURL(baseURL))
	}
	if s.IdentityField != "" {
		opts = append(opts, collection.WithIdentityField(s.IdentityField))
	}
	if s.ResponseRoot != "" {
		opts = append(opts, collection.WithResponseRoot(s.ResponseRoot))
	}
	if len(s.Params) > 0 {
		opts = append(opts, collection.WithDefaultParams(s.Params))
	}
	if s.Schema != "" {
		opts = append(opts, collection.WithSchema(s.Schema))
	}
	if s.Type != "" {
		opts = append(opts, collection.WithType(s.Type))
	}
	return opts
}
