package sarima

import (
	"errors"
	"fmt"
)

// FitError reports that a model could not be fitted: too little data for the
// order, or an optimizer that did not reach a finite solution.
type FitError struct {
	Model  string
	Reason string
	Err    error
}

func (e *FitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fit %s: %s: %v", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("fit %s: %s", e.Model, e.Reason)
}

func (e *FitError) Unwrap() error {
	return e.Err
}

// IsFitError reports whether err wraps a *FitError.
func IsFitError(err error) bool {
	var fe *FitError
	return errors.As(err, &fe)
}
