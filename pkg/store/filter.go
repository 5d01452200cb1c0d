package store

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getmockd/pipeline/pkg/collection"
)

// Filter returns copies of the records for which expression evaluates to
// true. Record fields are the expression's variables; fields missing from a
// record evaluate to nil. A record on which the expression fails at runtime
// (e.g. comparing nil with a number) does not match.
//
//	s.Filter(`status == "active" && age >= 18`)
func (m *Memory) Filter(expression string) ([]collection.Record, error) {
	program, err := compileFilter(expression)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]collection.Record, 0)
	for _, rec := range m.records {
		if m.evalFilter(program, rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func compileFilter(expression string) (*vm.Program, error) {
	if expression == "" {
		return nil, collection.InvalidArgument(domain, "filter expression cannot be empty")
	}
	program, err := expr.Compile(expression, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, &collection.Error{
			Kind:    collection.KindInvalidArgument,
			Domain:  domain,
			Message: "invalid filter expression",
			Err:     err,
		}
	}
	return program, nil
}

func (m *Memory) evalFilter(program *vm.Program, rec collection.Record) bool {
	result, err := expr.Run(program, map[string]any(rec))
	if err != nil {
		m.log.Debug("filter did not evaluate", "collection", m.name, "id", rec[m.idField], "error", err)
		return false
	}
	b, _ := result.(bool)
	return b
}
