package domain

import (
	"fmt"
	"reflect"
	"strings"
)

// Clone constructs a new unfitted estimator with the same parameters as e.
//
// Nested estimator parameters are cloned recursively. Fitted state is never
// carried over.
func Clone(e Estimator) (Estimator, error) {
	if e == nil {
		return nil, fmt.Errorf("cannot clone nil estimator")
	}

	params := e.GetParams(false)
	cloned := make(Params, len(params))
	for k, v := range params {
		if nested, ok := v.(Estimator); ok {
			c, err := Clone(nested)
			if err != nil {
				return nil, fmt.Errorf("failed to clone parameter %s: %w", k, err)
			}
			cloned[k] = c
			continue
		}
		cloned[k] = v
	}

	fresh := e.New()
	if err := fresh.SetParams(cloned); err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", TypeName(e), err)
	}
	return fresh, nil
}

// TypeName returns the bare concrete type name of v, without package or pointer.
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// Repr renders e the way it would be constructed: its own String method when
// it has one, otherwise TypeName(k=v, ...) over its sorted shallow parameters.
func Repr(e Estimator) string {
	if s, ok := e.(fmt.Stringer); ok {
		return s.String()
	}
	params := e.GetParams(false)
	parts := make([]string, 0, len(params))
	for _, k := range params.Keys() {
		v := params[k]
		if nested, ok := v.(Estimator); ok {
			parts = append(parts, fmt.Sprintf("%s=%s", k, Repr(nested)))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return fmt.Sprintf("%s(%s)", TypeName(e), strings.Join(parts, ", "))
}
