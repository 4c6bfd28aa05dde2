package service

import (
	"errors"
	"fmt"

	"github.com/pkordes/travelog/internal/domain"
)

// storeErr wraps a repo failure. Not-found and state errors keep their
// category; anything else becomes domain.ErrPersistence.
func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrState) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}

// reason classifies an error into the log/metric label used for dropped work.
func reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrState):
		return "state"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrCollaborator):
		return "collaborator"
	default:
		return "persistence"
	}
}
