package domain

import (
	"sort"
	"strings"
)

// NestedSeparator joins a parent parameter name and a nested estimator's
// parameter name in deep parameter maps.
const NestedSeparator = "__"

// Params maps parameter names to values.
type Params map[string]any

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// DeepParams expands shallow into a deep parameter map: every nested
// estimator contributes its own deep parameters under "<name>__" prefixes.
func DeepParams(shallow Params) Params {
	out := shallow.Clone()
	if out == nil {
		out = Params{}
	}
	for name, v := range shallow {
		nested, ok := v.(Estimator)
		if !ok {
			continue
		}
		for k, nv := range nested.GetParams(true) {
			out[name+NestedSeparator+k] = nv
		}
	}
	return out
}

// SplitNested separates deep parameter overrides into the ones addressed to
// the receiver and the ones addressed to nested estimators, keyed by parent
// parameter name.
func SplitNested(params Params) (Params, map[string]Params) {
	own := Params{}
	nested := map[string]Params{}
	for k, v := range params {
		parent, child, found := strings.Cut(k, NestedSeparator)
		if !found {
			own[k] = v
			continue
		}
		if nested[parent] == nil {
			nested[parent] = Params{}
		}
		nested[parent][child] = v
	}
	return own, nested
}
