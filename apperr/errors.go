// Package apperr defines the error taxonomy shared across the service.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports a malformed input payload. Always caller-recoverable.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PredictionError reports a failed or unavailable model inference.
// Callers degrade to an empty keypoint set rather than aborting.
type PredictionError struct {
	Msg string
	Err error
}

func (e *PredictionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("prediction: %s: %v", e.Msg, e.Err)
	}
	return "prediction: " + e.Msg
}

func (e *PredictionError) Unwrap() error { return e.Err }

// IsPrediction reports whether err is (or wraps) a PredictionError.
func IsPrediction(err error) bool {
	var pe *PredictionError
	return errors.As(err, &pe)
}

// NotFoundf wraps ErrNotFound with a description of the missing record.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Conflictf wraps ErrConflict with a description of the collision.
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}
