package potability

import (
	"errors"
	"fmt"

	"aquamind/ml"
)

var (
	// ErrModelUnavailable means no usable model was supplied. Callers must
	// stop before asking for input.
	ErrModelUnavailable = ml.ErrModelUnavailable

	// ErrInferenceFailure marks a provider error during predict or
	// predict_proba. It is reported, never retried.
	ErrInferenceFailure = errors.New("inference failure")
)

// InferenceError records which provider call failed.
type InferenceError struct {
	Op  string
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

func (e *InferenceError) Is(target error) bool {
	return target == ErrInferenceFailure
}
