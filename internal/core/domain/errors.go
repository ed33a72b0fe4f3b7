package domain

import (
	"errors"
	"fmt"
)

var (
	ErrWalletUnavailable   = errors.New("wallet unavailable")
	ErrSubmissionRejected  = errors.New("submission rejected")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrMirrorWriteFailure  = errors.New("mirror write failure")
	ErrNotFound            = errors.New("product not found")
	ErrValidation          = errors.New("validation error")
	ErrInvalidState        = errors.New("invalid state")
	ErrInvalidToken        = errors.New("invalid verification token")
)

// ValidationError names the missing or empty required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s is required", ErrValidation, e.Field)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
