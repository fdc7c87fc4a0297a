package handler // handler package: organizer (admin) catalog endpoints

import (
	"context"  // context for repository and upload calls
	"errors"   // errors.Is on storage sentinels
	"io"       // io.Reader for uploads
	"net/http" // status codes
	"strings"  // trimming of text fields
	"time"     // event dates and timestamps

	"github.com/google/uuid"      // event identifiers
	"github.com/labstack/echo/v4" // Echo web framework
	"go.uber.org/zap"             // structured logging

	"github.com/iliyamo/line-event-reservation/internal/model"      // domain types
	"github.com/iliyamo/line-event-reservation/internal/repository" // catalog persistence
	"github.com/iliyamo/line-event-reservation/internal/storage"    // image upload sentinels
)

// EventStore is the catalog as organizers see it; *repository.EventRepo
// implements it.
type EventStore interface {
	EventReader
	Create(ctx context.Context, ev *model.Event) error
	Update(ctx context.Context, ev *model.Event) error
	Delete(ctx context.Context, id string) error
}

// DashboardSource supplies the admin overview; *repository.Store implements it.
type DashboardSource interface {
	Dashboard(ctx context.Context) (repository.Dashboard, error)
}

// ImageUploader stores an event image and returns its public URL;
// *storage.Images implements it.
type ImageUploader interface {
	Upload(ctx context.Context, body io.Reader, size int64, contentType string) (string, error)
}

// PurgeFunc drops cached catalog responses after a write.
type PurgeFunc func(ctx context.Context) error

// AdminEventHandler bundles dependencies for organizer routes.
type AdminEventHandler struct {
	events    EventStore
	dashboard DashboardSource
	uploader  ImageUploader // nil disables uploads
	purge     PurgeFunc     // nil when no cache is configured
	logger    *zap.Logger
	now       func() time.Time
}

// NewAdminEventHandler panics if events or dashboard is nil.  uploader and
// purge are optional.
func NewAdminEventHandler(events EventStore, dashboard DashboardSource, uploader ImageUploader, purge PurgeFunc, logger *zap.Logger) *AdminEventHandler {
	if events == nil || dashboard == nil {
		panic("nil dependency passed to NewAdminEventHandler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminEventHandler{
		events:    events,
		dashboard: dashboard,
		uploader:  uploader,
		purge:     purge,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// eventInput is the body of create and update requests.
type eventInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ImageURL    *string `json:"image_url"`
	EventDate   string  `json:"event_date"` // RFC3339
	Venue       string  `json:"venue"`
	Price       int64   `json:"price"`
	Capacity    int     `json:"capacity"`
	IsPublished bool    `json:"is_published"`
}

// apply validates in and copies it onto ev.  It returns a client-facing
// message when the input is invalid.
func (in eventInput) apply(ev *model.Event) string {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return "title is required"
	}
	if in.Price < 0 {
		return "price must be zero or positive"
	}
	if in.Capacity < 0 {
		return "capacity must be zero or positive"
	}
	date, err := time.Parse(time.RFC3339, strings.TrimSpace(in.EventDate))
	if err != nil {
		return "event_date must be RFC3339"
	}
	ev.Title = title
	ev.Description = strings.TrimSpace(in.Description)
	ev.ImageURL = nil
	if in.ImageURL != nil {
		if u := strings.TrimSpace(*in.ImageURL); u != "" {
			ev.ImageURL = &u
		}
	}
	ev.EventDate = date.UTC()
	ev.Venue = strings.TrimSpace(in.Venue)
	ev.Price = in.Price
	ev.Capacity = in.Capacity
	ev.IsPublished = in.IsPublished
	return ""
}

// afterWrite purges the public catalog cache.  Failures only delay edits
// until the cache TTL runs out.
func (h *AdminEventHandler) afterWrite(ctx context.Context, eventID string) {
	if h.purge == nil {
		return
	}
	if err := h.purge(ctx); err != nil {
		h.logger.Warn("catalog cache purge failed", zap.String("event_id", eventID), zap.Error(err))
	}
}

// List handles GET /v1/admin/events and includes unpublished events.
func (h *AdminEventHandler) List(c echo.Context) error {
	events, err := h.events.List(c.Request().Context(), repository.EventFilter{})
	if err != nil {
		h.logger.Error("admin list events failed", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events})
}

// Create handles POST /v1/admin/events.
func (h *AdminEventHandler) Create(c echo.Context) error {
	var in eventInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	now := h.now()
	ev := &model.Event{
		ID:        uuid.NewString(),
		CreatedBy: actorFrom(c).UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if msg := in.apply(ev); msg != "" {
		return badRequest(c, msg)
	}
	ctx := c.Request().Context()
	if err := h.events.Create(ctx, ev); err != nil {
		h.logger.Error("create event failed", zap.Error(err))
		return respondError(c, err)
	}
	h.afterWrite(ctx, ev.ID)
	h.logger.Info("event created", zap.String("event_id", ev.ID), zap.String("by", ev.CreatedBy))
	return c.JSON(http.StatusCreated, ev)
}

// Update handles PUT /v1/admin/events/:id.  The body replaces every
// editable field.
func (h *AdminEventHandler) Update(c echo.Context) error {
	var in eventInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx := c.Request().Context()
	ev, err := h.events.GetByID(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if msg := in.apply(ev); msg != "" {
		return badRequest(c, msg)
	}
	ev.UpdatedAt = h.now()
	if err := h.events.Update(ctx, ev); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			h.logger.Error("update event failed", zap.String("event_id", ev.ID), zap.Error(err))
		}
		return respondError(c, err)
	}
	h.afterWrite(ctx, ev.ID)
	return c.JSON(http.StatusOK, ev)
}

// Delete handles DELETE /v1/admin/events/:id.  Events that have ever been
// reserved answer 409.
func (h *AdminEventHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.events.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "event has reservations", "code": "conflict"})
		}
		if !errors.Is(err, repository.ErrNotFound) {
			h.logger.Error("delete event failed", zap.String("event_id", id), zap.Error(err))
		}
		return respondError(c, err)
	}
	h.afterWrite(ctx, id)
	return c.NoContent(http.StatusNoContent)
}

// Stats handles GET /v1/admin/stats.
func (h *AdminEventHandler) Stats(c echo.Context) error {
	d, err := h.dashboard.Dashboard(c.Request().Context())
	if err != nil {
		h.logger.Error("dashboard failed", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Upload handles POST /v1/admin/uploads with a multipart "file" field.
func (h *AdminEventHandler) Upload(c echo.Context) error {
	if h.uploader == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "uploads are not configured", "code": "upstream_unavailable"})
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "unreadable file")
	}
	defer f.Close()

	url, err := h.uploader.Upload(c.Request().Context(), f, fh.Size, fh.Header.Get(echo.HeaderContentType))
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		return c.JSON(http.StatusUnsupportedMediaType, echo.Map{"error": "only image files are accepted", "code": "unsupported_type"})
	case errors.Is(err, storage.ErrTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file exceeds 5MB", "code": "too_large"})
	case errors.Is(err, storage.ErrEmpty):
		return badRequest(c, "file is empty")
	case err != nil:
		h.logger.Error("image upload failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "upload failed", "code": "upload_failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"url": url})
}
