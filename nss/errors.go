package nss

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput reports malformed observations.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidParams reports parameters outside the model domain.
	ErrInvalidParams = errors.New("invalid nss parameters")
	// ErrFitFailure is matched by every *FitError.
	ErrFitFailure = errors.New("nss fit failed")
)

// FitError describes a calibration that produced no usable parameters.
// Reason wraps one of the solver sentinels.
type FitError struct {
	Op          string
	Reason      error
	Evaluations int
}

func (e *FitError) Error() string {
	return fmt.Sprintf("%s: %v after %d evaluations: %v", e.Op, ErrFitFailure, e.Evaluations, e.Reason)
}

func (e *FitError) Unwrap() []error {
	return []error{ErrFitFailure, e.Reason}
}
