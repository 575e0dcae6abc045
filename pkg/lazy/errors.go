package lazy

import (
	"errors"
	"fmt"
)

var (
	// ErrNotEstimator is returned when wrapping a value that lacks the
	// estimator capability set.
	ErrNotEstimator = errors.New("not an estimator")
	// ErrNameMismatch is returned when an explicit name disagrees with the
	// estimator's fingerprint.
	ErrNameMismatch = errors.New("name does not match estimator fingerprint")

	ErrUnknownAttribute  = errors.New("unknown attribute")
	ErrReadOnlyAttribute = errors.New("attribute is read-only")
)

// AttributeError reports a failed attribute access on a proxy.
type AttributeError struct {
	Name string
	Kind error
}

func (e *AttributeError) Error() string {
	if errors.Is(e.Kind, ErrReadOnlyAttribute) {
		return fmt.Sprintf("cannot set attribute %q: lazy estimators are immutable, use SetParams", e.Name)
	}
	return fmt.Sprintf("%s: %q", e.Kind.Error(), e.Name)
}

func (e *AttributeError) Unwrap() error { return e.Kind }
