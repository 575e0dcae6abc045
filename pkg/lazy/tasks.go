package lazy

import (
	"context"
	"fmt"
	"reflect"

	"github.com/aescanero/dagoml/pkg/array"
	"github.com/aescanero/dagoml/pkg/domain"
	"github.com/huandu/go-clone"
	"gonum.org/v1/gonum/mat"
)

// Task names, used as graph labels and metric labels.
const (
	TaskFromEstimator = "from-estimator"
	TaskSetParams     = "set-params"
	TaskFit           = "fit"
	TaskPredict       = "predict"
	TaskScore         = "score"
	TaskConcatenate   = "concatenate"
)

// deepCopy returns an independent copy of e including fitted state.
func deepCopy(e domain.Estimator) domain.Estimator {
	return clone.Clone(e).(domain.Estimator)
}

// materialize yields a fresh copy of the captured template so callers can
// never mutate it through a computed result.
func materialize(_ context.Context, args []any) (any, error) {
	est, ok := args[0].(domain.Estimator)
	if !ok {
		return nil, fmt.Errorf("expected an estimator, got %T", args[0])
	}
	return deepCopy(est), nil
}

// fit trains a copy of the input estimator so the value stored under the
// parent key is never mutated.
func fit(_ context.Context, args []any) (any, error) {
	est, ok := args[0].(domain.Estimator)
	if !ok {
		return nil, fmt.Errorf("expected an estimator, got %T", args[0])
	}
	X, err := asMatrix(args[1])
	if err != nil {
		return nil, err
	}
	y, err := asVector(args[2])
	if err != nil {
		return nil, err
	}
	fitParams, _ := args[3].(domain.Params)

	trained := deepCopy(est)
	if err := trained.Fit(X, y, fitParams); err != nil {
		return nil, err
	}
	return trained, nil
}

func predict(_ context.Context, args []any) (any, error) {
	p, ok := args[0].(domain.Predictor)
	if !ok {
		return nil, fmt.Errorf("%s does not implement Predict", domain.TypeName(args[0]))
	}
	X, err := asMatrix(args[1])
	if err != nil {
		return nil, err
	}
	return p.Predict(X)
}

func score(_ context.Context, args []any) (any, error) {
	s, ok := args[0].(domain.Scorer)
	if !ok {
		return nil, fmt.Errorf("%s does not implement Score", domain.TypeName(args[0]))
	}
	X, err := asMatrix(args[1])
	if err != nil {
		return nil, err
	}
	y, err := asVector(args[2])
	if err != nil {
		return nil, err
	}
	return s.Score(X, y)
}

// stackChunks concatenates matrix blocks row-wise.
func stackChunks(_ context.Context, args []any) (any, error) {
	ms := make([]mat.Matrix, len(args))
	for i, a := range args {
		m, err := asMatrix(a)
		if err != nil {
			return nil, err
		}
		ms[i] = m
	}
	return array.Stack(ms...), nil
}

// joinChunks concatenates vector blocks. A single RefList argument is
// flattened first.
func joinChunks(_ context.Context, args []any) (any, error) {
	if len(args) == 1 {
		if nested, ok := args[0].([]any); ok {
			args = nested
		}
	}
	vs := make([]mat.Vector, len(args))
	for i, a := range args {
		v, err := asVector(a)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return array.Join(vs...), nil
}

func asMatrix(v any) (mat.Matrix, error) {
	if isNil(v) {
		return nil, fmt.Errorf("expected a matrix, got nil")
	}
	switch m := v.(type) {
	case *array.Chunked:
		return m.Dense(), nil
	case mat.Matrix:
		return m, nil
	default:
		return nil, fmt.Errorf("expected a matrix, got %T", v)
	}
}

func asVector(v any) (mat.Vector, error) {
	if isNil(v) {
		return nil, nil
	}
	switch t := v.(type) {
	case *array.ChunkedVector:
		return t.VecDense(), nil
	case mat.Vector:
		return t, nil
	case []float64:
		if len(t) == 0 {
			return nil, fmt.Errorf("expected a vector, got an empty slice")
		}
		return mat.NewVecDense(len(t), append([]float64(nil), t...)), nil
	default:
		return nil, fmt.Errorf("expected a vector, got %T", v)
	}
}

// isNil reports nil and typed nil pointers alike.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
