package lazy

import (
	"context"
	"fmt"
	"sort"

	"github.com/aescanero/dagoml/pkg/array"
	"github.com/aescanero/dagoml/pkg/domain"
	"github.com/aescanero/dagoml/pkg/fingerprint"
	"github.com/aescanero/dagoml/pkg/graph"
)

// reprPrefix marks the string form of a proxy.
const reprPrefix = "Lazy"

// Own attributes, reported by Dir and readable through Attr.
const (
	AttrKey           = "key"
	AttrEstimatorType = "estimator_type"
)

// Estimator is a deferred proxy for a domain.Estimator. The zero value is not
// usable; construct proxies with New or From.
type Estimator struct {
	key   string
	graph graph.Graph
	// est holds the declared parameters. It is a private copy and is never
	// mutated or fitted.
	est domain.Estimator
}

type options struct {
	name string
}

// Option configures New.
type Option func(*options)

// WithName asserts the key the new proxy must have. New fails with
// ErrNameMismatch when it differs from the estimator's fingerprint.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// New wraps v in a proxy. v must be a domain.Estimator that also implements
// domain.Predictor or domain.Scorer. A proxy passed to New is returned as is.
func New(v any, opts ...Option) (*Estimator, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if p, ok := v.(*Estimator); ok && p != nil {
		if o.name != "" && o.name != p.key {
			return nil, fmt.Errorf("%w: got %q, expected %q", ErrNameMismatch, o.name, p.key)
		}
		return p, nil
	}
	if !domain.IsEstimator(v) {
		return nil, fmt.Errorf("%w: %T", ErrNotEstimator, v)
	}
	est := v.(domain.Estimator)

	key := fingerprint.Tokenize(est)
	if o.name != "" && o.name != key {
		return nil, fmt.Errorf("%w: got %q, expected %q", ErrNameMismatch, o.name, key)
	}
	return newProxy(key, TaskFromEstimator, deepCopy(est)), nil
}

// From wraps v without an explicit name.
func From(v any) (*Estimator, error) {
	return New(v)
}

// newProxy builds a proxy whose graph is the single task producing tmpl.
func newProxy(key, taskName string, tmpl domain.Estimator) *Estimator {
	t := graph.Task{
		Name: taskName,
		Func: materialize,
		Args: []any{tmpl},
	}
	return &Estimator{key: key, graph: graph.Single(key, t), est: tmpl}
}

// Key returns the graph key whose value is the concrete estimator.
func (p *Estimator) Key() string { return p.key }

// Graph returns the task graph needed to compute Key.
func (p *Estimator) Graph() graph.Graph { return p.graph }

// Token implements fingerprint.Tokenizer.
func (p *Estimator) Token() string { return p.key }

// EstimatorType returns the wrapped estimator's capability tag.
func (p *Estimator) EstimatorType() string { return p.est.EstimatorType() }

// GetParams returns the declared parameters without computing anything.
func (p *Estimator) GetParams(deep bool) domain.Params {
	return p.est.GetParams(deep)
}

// SetParams returns a proxy for an unfitted estimator with params applied on
// top of the declared ones. The receiver is unchanged.
func (p *Estimator) SetParams(params domain.Params) (*Estimator, error) {
	known := p.est.GetParams(true)
	for _, name := range params.Keys() {
		if _, ok := known[name]; !ok {
			return nil, &domain.ParameterError{Estimator: domain.TypeName(p.est), Name: name}
		}
	}

	next, err := domain.Clone(p.est)
	if err != nil {
		return nil, err
	}
	if err := next.SetParams(params); err != nil {
		return nil, err
	}
	return newProxy(fingerprint.Tokenize(next), TaskSetParams, next), nil
}

// Fit returns a proxy for the estimator trained on X and y. X and y may be
// matrices and vectors, chunked arrays, or *graph.Delayed handles producing
// either; y may be nil. Nothing is trained until the result is computed.
func (p *Estimator) Fit(X, y any, fitParams domain.Params) *Estimator {
	key := fingerprint.Tokenize(p.key, TaskFit, X, y, fitParams)

	g := p.graph
	xArg, g := argument(g, X)
	yArg, g := argument(g, y)
	g = g.With(key, graph.Task{
		Name: TaskFit,
		Func: fit,
		Args: []any{graph.Ref(p.key), xArg, yArg, fitParams.Clone()},
	})
	return &Estimator{key: key, graph: g, est: p.est}
}

// Predict returns a handle to the predictions for X. Chunked input is
// predicted per chunk and the handle resolves to the joined vector.
func (p *Estimator) Predict(X any) *graph.Delayed {
	tok := fingerprint.Tokenize(p.key, TaskPredict, X)
	key := TaskPredict + "-" + tok

	if cx, ok := X.(*array.Chunked); ok && cx != nil {
		g := p.graph
		parts := make(graph.RefList, cx.NumChunks())
		for i, chunk := range cx.Chunks() {
			part := fmt.Sprintf("%s-%d", key, i)
			g = g.With(part, graph.Task{
				Name: TaskPredict,
				Func: predict,
				Args: []any{graph.Ref(p.key), chunk},
			})
			parts[i] = part
		}
		g = g.With(key, graph.Task{
			Name: TaskConcatenate,
			Func: joinChunks,
			Args: []any{parts},
		})
		return graph.NewDelayed(key, g)
	}

	xArg, g := argument(p.graph, X)
	g = g.With(key, graph.Task{
		Name: TaskPredict,
		Func: predict,
		Args: []any{graph.Ref(p.key), xArg},
	})
	return graph.NewDelayed(key, g)
}

// Score returns a handle to the estimator's score on X and y. It resolves
// to a float64.
func (p *Estimator) Score(X, y any) *graph.Delayed {
	key := TaskScore + "-" + fingerprint.Tokenize(p.key, TaskScore, X, y)

	g := p.graph
	xArg, g := argument(g, X)
	yArg, g := argument(g, y)
	g = g.With(key, graph.Task{
		Name: TaskScore,
		Func: score,
		Args: []any{graph.Ref(p.key), xArg, yArg},
	})
	return graph.NewDelayed(key, g)
}

// ToDelayed returns a handle that resolves to the concrete estimator.
func (p *Estimator) ToDelayed() *graph.Delayed {
	return graph.NewDelayed(p.key, p.graph)
}

// ToConcrete computes the graph and returns the concrete estimator.
func (p *Estimator) ToConcrete(ctx context.Context, opts ...graph.ComputeOption) (domain.Estimator, error) {
	v, err := p.ToDelayed().Compute(ctx, opts...)
	if err != nil {
		return nil, err
	}
	est, ok := v.(domain.Estimator)
	if !ok {
		return nil, fmt.Errorf("key %s resolved to %T, not an estimator", p.key, v)
	}
	return est, nil
}

// Compute is an alias of ToConcrete.
func (p *Estimator) Compute(ctx context.Context, opts ...graph.ComputeOption) (domain.Estimator, error) {
	return p.ToConcrete(ctx, opts...)
}

// Clone returns a proxy for a fresh unfitted estimator with the same
// declared parameters.
func (p *Estimator) Clone() (*Estimator, error) {
	c, err := domain.Clone(p.est)
	if err != nil {
		return nil, err
	}
	return newProxy(fingerprint.Tokenize(c), TaskFromEstimator, c), nil
}

// Attr reads an attribute: the proxy's own attributes first, then the
// declared parameters of the wrapped estimator.
func (p *Estimator) Attr(name string) (any, error) {
	switch name {
	case AttrKey:
		return p.key, nil
	case AttrEstimatorType:
		return p.EstimatorType(), nil
	}
	if v, ok := p.est.GetParams(true)[name]; ok {
		return v, nil
	}
	return nil, &AttributeError{Name: name, Kind: ErrUnknownAttribute}
}

// SetAttr always fails. Proxies are immutable; use SetParams.
func (p *Estimator) SetAttr(name string, _ any) error {
	return &AttributeError{Name: name, Kind: ErrReadOnlyAttribute}
}

// Dir lists every name Attr accepts, sorted.
func (p *Estimator) Dir() []string {
	names := []string{AttrKey, AttrEstimatorType}
	names = append(names, p.est.GetParams(true).Keys()...)
	sort.Strings(names)
	return names
}

func (p *Estimator) String() string {
	return reprPrefix + domain.Repr(p.est)
}

// argument converts an input value into a task argument, extending g with
// whatever tasks produce it.
func argument(g graph.Graph, v any) (any, graph.Graph) {
	if isNil(v) {
		return nil, g
	}
	switch t := v.(type) {
	case *graph.Delayed:
		return graph.Ref(t.Key()), graph.Merge(g, t.Graph())
	case *Estimator:
		return graph.Ref(t.Key()), graph.Merge(g, t.Graph())
	case *array.Chunked:
		key := TaskConcatenate + "-" + t.Token()
		args := make([]any, t.NumChunks())
		for i, c := range t.Chunks() {
			args[i] = c
		}
		return graph.Ref(key), g.With(key, graph.Task{Name: TaskConcatenate, Func: stackChunks, Args: args})
	case *array.ChunkedVector:
		key := TaskConcatenate + "-" + t.Token()
		args := make([]any, t.NumChunks())
		for i, c := range t.Chunks() {
			args[i] = c
		}
		return graph.Ref(key), g.With(key, graph.Task{Name: TaskConcatenate, Func: joinChunks, Args: args})
	default:
		return v, g
	}
}
