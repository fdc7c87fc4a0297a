package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/line-event-reservation/internal/repository"
)

// Lifecycle outcomes surfaced to callers.  Handlers map each one to a
// distinct HTTP response.
var (
	ErrUnauthorized              = errors.New("unauthorized")
	ErrForbidden                 = errors.New("forbidden")
	ErrNotFound                  = errors.New("not found")
	ErrNotPublished              = errors.New("event is not published")
	ErrCapacityExceeded          = errors.New("event capacity reached")
	ErrDuplicateReservation      = errors.New("active reservation already exists")
	ErrAlreadyCancelled          = errors.New("reservation already cancelled")
	ErrAlreadyCheckedIn          = errors.New("reservation already checked in")
	ErrRefundFailed              = errors.New("refund failed")
	ErrPaymentVerificationFailed = errors.New("payment signature verification failed")
	ErrUpstreamUnavailable       = errors.New("upstream unavailable")

	// ErrCheckoutRequired is returned when the free path is used for a paid event.
	ErrCheckoutRequired = errors.New("paid event requires checkout")
	// ErrNotPayable is returned when checkout is requested for a free event.
	ErrNotPayable = errors.New("free event cannot be checked out")
)

// storeErr converts a repository error into the lifecycle taxonomy.
// Errors that are already lifecycle errors pass through unchanged.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isLifecycle(err):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrDuplicateReservation
	default:
		return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, op, err)
	}
}

func isLifecycle(err error) bool {
	for _, target := range []error{
		ErrUnauthorized, ErrForbidden, ErrNotFound, ErrNotPublished, ErrCapacityExceeded,
		ErrDuplicateReservation, ErrAlreadyCancelled, ErrAlreadyCheckedIn, ErrRefundFailed,
		ErrPaymentVerificationFailed, ErrUpstreamUnavailable, ErrCheckoutRequired, ErrNotPayable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
