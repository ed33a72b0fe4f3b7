package service

import (
	"errors"
	"fmt"

	"github.com/rl1809/med-provenance/internal/core/domain"
)

// ensureKind wraps err with kind unless it already matches.
func ensureKind(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// outcome maps an error to a metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "done"
	case errors.Is(err, domain.ErrValidation):
		return "validation_error"
	case errors.Is(err, domain.ErrWalletUnavailable):
		return "wallet_unavailable"
	case errors.Is(err, domain.ErrSubmissionRejected):
		return "submission_rejected"
	case errors.Is(err, domain.ErrConfirmationTimeout):
		return "confirmation_timeout"
	case errors.Is(err, domain.ErrMirrorWriteFailure):
		return "mirror_write_failure"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	default:
		return "internal"
	}
}
