package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFitted is the kind of every NotFittedError.
	ErrNotFitted = errors.New("estimator not fitted")
	// ErrUnknownParameter is the kind of every ParameterError.
	ErrUnknownParameter = errors.New("unknown parameter")
)

// NotFittedError is returned by estimators asked to use learned state before
// Fit has been called.
type NotFittedError struct {
	Estimator string
	Operation string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("this %s instance is not fitted yet; call Fit with appropriate arguments before using %s",
		e.Estimator, e.Operation)
}

func (e *NotFittedError) Unwrap() error { return ErrNotFitted }

// ParameterError reports a parameter name the estimator does not declare.
type ParameterError struct {
	Estimator string
	Name      string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q for estimator %s", e.Name, e.Estimator)
}

func (e *ParameterError) Unwrap() error { return ErrUnknownParameter }
