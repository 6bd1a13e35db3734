package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrForbidden         = errors.New("forbidden")
	ErrTemporalViolation = errors.New("temporal violation")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrMalformedInput    = errors.New("malformed input")

	// ErrSlotNoLongerAvailable is the InvalidState a booker gets when someone else won the slot.
	ErrSlotNoLongerAvailable = fmt.Errorf("%w: slot no longer available", ErrInvalidState)
)

// unavailable tags a repository failure as a store outage unless it is
// already one of the domain errors.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrInvalidState, ErrForbidden, ErrTemporalViolation, ErrMalformedInput, ErrStoreUnavailable} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
