package store

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/getmockd/pipeline/pkg/collection"
)

// Schema validates records against a compiled JSON Schema (draft 2020-12).
type Schema struct {
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON Schema document for the named collection.
func CompileSchema(name, document string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	resource := name + ".schema.json"
	if err := compiler.AddResource(resource, strings.NewReader(document)); err != nil {
		return nil, schemaError("invalid schema for collection "+name, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, schemaError("invalid schema for collection "+name, err)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate reports an InvalidArgument error when rec does not satisfy the
// schema. The record is round-tripped through JSON so Go numeric types are
// checked the way a JSON document would be.
func (s *Schema) Validate(rec collection.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return schemaError("record is not JSON-compatible", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return schemaError("record is not JSON-compatible", err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return schemaError("record failed schema validation", errors.New(leafMessage(verr)))
		}
		return schemaError("record failed schema validation", err)
	}
	return nil
}

// leafMessage returns the first innermost cause, which names the offending
// field rather than the schema root.
func leafMessage(err *jsonschema.ValidationError) string {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	if err.InstanceLocation == "" {
		return err.Message
	}
	return err.InstanceLocation + ": " + err.Message
}

func schemaError(msg string, err error) *collection.Error {
	return &collection.Error{Kind: collection.KindInvalidArgument, Domain: domain, Message: msg, Err: err}
}
