// Package domain defines the capability contract of wrapped estimators and the
// records shared by the scheduler service.
//
// An estimator is any value that exposes its constructor parameters, can be
// re-parameterized, and trains in place:
//
//	type Estimator interface {
//	    GetParams(deep bool) Params
//	    SetParams(params Params) error
//	    Fit(X mat.Matrix, y mat.Vector, fitParams Params) error
//	    EstimatorType() string
//	    New() Estimator
//	}
//
// Prediction and scoring are separate capabilities (Predictor, Scorer). Fitted
// state that must contribute to an estimator's identity is exposed through
// FittedStater, an explicit allow-list rather than a naming convention.
package domain
