package domain

import (
	"gonum.org/v1/gonum/mat"
)

// Estimator capability tags.
const (
	EstimatorTypeClassifier  = "classifier"
	EstimatorTypeRegressor   = "regressor"
	EstimatorTypeClusterer   = "clusterer"
	EstimatorTypeTransformer = "transformer"
)

// Estimator is the interface every wrapped model satisfies.
type Estimator interface {
	// GetParams returns the constructor parameters. With deep set, parameters
	// holding nested estimators are expanded as "<name>__<param>" entries.
	GetParams(deep bool) Params

	// SetParams applies parameter overrides in place. Unknown names fail with
	// a *ParameterError.
	SetParams(params Params) error

	// Fit trains the receiver in place. y may be nil for unsupervised models.
	Fit(X mat.Matrix, y mat.Vector, fitParams Params) error

	// EstimatorType returns the capability tag (classifier, regressor, ...).
	EstimatorType() string

	// New returns a fresh, unfitted instance of the same concrete type with
	// default parameters.
	New() Estimator
}

// Predictor is implemented by estimators that produce one output per sample.
type Predictor interface {
	Predict(X mat.Matrix) (*mat.VecDense, error)
}

// Scorer is implemented by estimators that can evaluate themselves on labelled data.
type Scorer interface {
	Score(X mat.Matrix, y mat.Vector) (float64, error)
}

// FittedStater exposes the learned state that distinguishes a fitted instance
// from an unfitted one. The returned map is empty until the model is fitted.
type FittedStater interface {
	FittedAttributes() map[string]any
}

// IsEstimator reports whether v satisfies the full capability set: the
// Estimator contract plus at least one of Predictor or Scorer.
func IsEstimator(v any) bool {
	if _, ok := v.(Estimator); !ok {
		return false
	}
	_, predicts := v.(Predictor)
	_, scores := v.(Scorer)
	return predicts || scores
}
