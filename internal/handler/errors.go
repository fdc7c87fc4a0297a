package handler // handler contains the HTTP handlers of the API

import (
	"errors"   // errors.Is matches lifecycle sentinels
	"net/http" // status codes

	"github.com/labstack/echo/v4" // Echo context and echo.Map

	"github.com/iliyamo/line-event-reservation/internal/repository"
	"github.com/iliyamo/line-event-reservation/internal/service"
)

// errorMapping binds a sentinel to its HTTP status and machine-readable code.
type errorMapping struct {
	target error
	status int
	code   string
}

// lifecycleErrors is checked in order; the first match wins.
var lifecycleErrors = []errorMapping{
	{service.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrNotPublished, http.StatusBadRequest, "not_published"},
	{service.ErrCheckoutRequired, http.StatusBadRequest, "checkout_required"},
	{service.ErrNotPayable, http.StatusBadRequest, "not_payable"},
	{service.ErrPaymentVerificationFailed, http.StatusBadRequest, "payment_verification_failed"},
	{service.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{service.ErrDuplicateReservation, http.StatusConflict, "duplicate_reservation"},
	{service.ErrAlreadyCancelled, http.StatusConflict, "already_cancelled"},
	{service.ErrAlreadyCheckedIn, http.StatusConflict, "already_checked_in"},
	{repository.ErrConflict, http.StatusConflict, "conflict"},
	{service.ErrRefundFailed, http.StatusBadGateway, "refund_failed"},
	{service.ErrUpstreamUnavailable, http.StatusServiceUnavailable, "upstream_unavailable"},
}

// statusFor returns the HTTP status and code for err.  Unknown errors map
// to 500 "internal".
func statusFor(err error) (int, string) {
	for _, m := range lifecycleErrors {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// respondError writes err as {"error": msg, "code": slug}.  Internal
// details of 5xx errors are not echoed to the client.
func respondError(c echo.Context, err error) error {
	status, code := statusFor(err)
	msg := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		msg = "internal error"
	case status == http.StatusServiceUnavailable:
		msg = service.ErrUpstreamUnavailable.Error()
	case status == http.StatusBadGateway:
		msg = service.ErrRefundFailed.Error()
	}
	return c.JSON(status, echo.Map{"error": msg, "code": code})
}

// badRequest answers 400 for malformed input.
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": "bad_request"})
}
