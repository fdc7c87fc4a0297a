package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/line-event-reservation/internal/model"
	"github.com/iliyamo/line-event-reservation/internal/repository"
	"github.com/iliyamo/line-event-reservation/internal/utils"
)

// EventReader reads the event catalog; *repository.EventRepo implements it.
type EventReader interface {
	List(ctx context.Context, f repository.EventFilter) ([]model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// ActiveCounter is the capacity counter.
type ActiveCounter interface {
	ActiveCount(ctx context.Context, eventID string) (int, error)
}

// EventHandler serves the public event catalog.
type EventHandler struct {
	events  EventReader
	counter ActiveCounter
	logger  *zap.Logger
	now     func() time.Time
}

// NewEventHandler panics if events or counter is nil.
func NewEventHandler(events EventReader, counter ActiveCounter, logger *zap.Logger) *EventHandler {
	if events == nil || counter == nil {
		panic("nil dependency passed to NewEventHandler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{events: events, counter: counter, logger: logger, now: time.Now}
}

type eventDetail struct {
	model.Event
	CalendarURL string `json:"calendar_url"`
}

// List handles GET /v1/events.  Only published events are returned;
// ?upcoming=true drops events that have already started.
func (h *EventHandler) List(c echo.Context) error {
	f := repository.EventFilter{PublishedOnly: true}
	if up, _ := strconv.ParseBool(c.QueryParam("upcoming")); up {
		f.UpcomingFrom = h.now()
	}
	events, err := h.events.List(c.Request().Context(), f)
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events})
}

// Get handles GET /v1/events/:id.  Unpublished events are reported as
// missing.
func (h *EventHandler) Get(c echo.Context) error {
	ev, err := h.events.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			h.logger.Error("get event failed", zap.String("event_id", c.Param("id")), zap.Error(err))
		}
		return respondError(c, err)
	}
	if !ev.IsPublished {
		return respondError(c, repository.ErrNotFound)
	}
	return c.JSON(http.StatusOK, eventDetail{
		Event:       *ev,
		CalendarURL: utils.GoogleCalendarURL(ev.Title, ev.Description, ev.Venue, ev.EventDate),
	})
}

// Count handles GET /v1/events/:id/reservations/count.  remaining is -1
// for events without a capacity ceiling.
func (h *EventHandler) Count(c echo.Context) error {
	ctx := c.Request().Context()
	ev, err := h.events.GetByID(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if !ev.IsPublished {
		return respondError(c, repository.ErrNotFound)
	}
	n, err := h.counter.ActiveCount(ctx, ev.ID)
	if err != nil {
		h.logger.Error("active count failed", zap.String("event_id", ev.ID), zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"event_id":  ev.ID,
		"count":     n,
		"capacity":  ev.Capacity,
		"remaining": ev.Remaining(n),
	})
}
