package handler // handler package: reservation endpoints for signed-in users

import (
	"context"  // context is threaded into the lifecycle engine
	"net/http" // status codes
	"strings"  // trimming of identifiers

	"github.com/labstack/echo/v4" // Echo web framework
	"go.uber.org/zap"             // structured logging

	"github.com/iliyamo/line-event-reservation/internal/model"   // domain types
	"github.com/iliyamo/line-event-reservation/internal/service" // reservation lifecycle engine
)

// Reservations is the lifecycle engine as seen by HTTP handlers;
// *service.ReservationService implements it.
type Reservations interface {
	CreateFreeReservation(ctx context.Context, actor service.Actor, eventID string) (*model.Reservation, error)
	InitiatePaidCheckout(ctx context.Context, actor service.Actor, eventID string) (*service.CheckoutResult, error)
	Cancel(ctx context.Context, actor service.Actor, reservationID string) (*service.CancelResult, error)
	CheckIn(ctx context.Context, actor service.Actor, reservationID string) (*model.Reservation, error)
	ListMine(ctx context.Context, actor service.Actor) ([]model.ReservationView, error)
	ListAll(ctx context.Context, actor service.Actor, eventID string) ([]model.ReservationView, error)
	Get(ctx context.Context, actor service.Actor, id string) (*model.ReservationView, error)
}

// ReservationHandler bundles the lifecycle engine for reservation routes.
type ReservationHandler struct {
	svc    Reservations
	logger *zap.Logger
}

// NewReservationHandler constructs a ReservationHandler and panics if svc is nil.
func NewReservationHandler(svc Reservations, logger *zap.Logger) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationHandler{svc: svc, logger: logger}
}

type eventRef struct {
	EventID string `json:"event_id" form:"event_id"`
}

// bindEventID reads {"event_id": ...} from the body.
func bindEventID(c echo.Context) (string, bool) {
	var body eventRef
	if err := c.Bind(&body); err != nil {
		return "", false
	}
	id := strings.TrimSpace(body.EventID)
	return id, id != ""
}

// fail logs unexpected errors and writes the mapped response.
func (h *ReservationHandler) fail(c echo.Context, op string, err error) error {
	if status, _ := statusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", zap.String("user_id", actorFrom(c).UserID), zap.Error(err))
	}
	return respondError(c, err)
}

// Create handles POST /v1/reservations for free events.
func (h *ReservationHandler) Create(c echo.Context) error {
	eventID, ok := bindEventID(c)
	if !ok {
		return badRequest(c, "event_id required")
	}
	res, err := h.svc.CreateFreeReservation(c.Request().Context(), actorFrom(c), eventID)
	if err != nil {
		return h.fail(c, "create reservation", err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Checkout handles POST /v1/checkout for paid events.  The response
// carries the hosted payment page the client must redirect to.
func (h *ReservationHandler) Checkout(c echo.Context) error {
	eventID, ok := bindEventID(c)
	if !ok {
		return badRequest(c, "event_id required")
	}
	out, err := h.svc.InitiatePaidCheckout(c.Request().Context(), actorFrom(c), eventID)
	if err != nil {
		return h.fail(c, "checkout", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"url":            out.URL,
		"reservation_id": out.Reservation.ID,
	})
}

// Mine handles GET /v1/my-reservations.
func (h *ReservationHandler) Mine(c echo.Context) error {
	list, err := h.svc.ListMine(c.Request().Context(), actorFrom(c))
	if err != nil {
		return h.fail(c, "list my reservations", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

// Get handles GET /v1/reservations/:id for the owner or an admin.
func (h *ReservationHandler) Get(c echo.Context) error {
	v, err := h.svc.Get(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return h.fail(c, "get reservation", err)
	}
	return c.JSON(http.StatusOK, v)
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	out, err := h.svc.Cancel(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return h.fail(c, "cancel reservation", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"refunded":    out.Refunded,
		"reservation": out.Reservation,
	})
}

// CheckIn handles POST /v1/reservations/:id/checkin.  Admin only.
func (h *ReservationHandler) CheckIn(c echo.Context) error {
	res, err := h.svc.CheckIn(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return h.fail(c, "check in", err)
	}
	return c.JSON(http.StatusOK, res)
}

// ListAll handles GET /v1/admin/reservations, optionally ?event_id=.
func (h *ReservationHandler) ListAll(c echo.Context) error {
	list, err := h.svc.ListAll(c.Request().Context(), actorFrom(c), strings.TrimSpace(c.QueryParam("event_id")))
	if err != nil {
		return h.fail(c, "list reservations", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}
