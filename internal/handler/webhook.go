package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/line-event-reservation/internal/payment"
	"github.com/iliyamo/line-event-reservation/internal/service"
)

// maxWebhookBody caps the payload read from the provider.
const maxWebhookBody = 1 << 20

// DeliveryParser authenticates and decodes a provider webhook;
// *payment.Verifier implements it.
type DeliveryParser interface {
	Parse(payload []byte, header string) (*payment.Delivery, error)
}

// PaymentConfirmer applies a verified confirmation.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, pc service.PaymentConfirmation) (service.ConfirmOutcome, error)
}

// WebhookHandler is the payment confirmation listener.
type WebhookHandler struct {
	parser    DeliveryParser
	confirmer PaymentConfirmer
	logger    *zap.Logger
}

// NewWebhookHandler panics if parser or confirmer is nil.
func NewWebhookHandler(parser DeliveryParser, confirmer PaymentConfirmer, logger *zap.Logger) *WebhookHandler {
	if parser == nil || confirmer == nil {
		panic("nil dependency passed to NewWebhookHandler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{parser: parser, confirmer: confirmer, logger: logger}
}

// Stripe handles POST /v1/webhooks/stripe.  A bad signature answers 400
// and changes nothing.  A store or refund failure answers 503 so the
// provider redelivers; every other verified delivery is acknowledged with 200.
func (h *WebhookHandler) Stripe(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "unreadable body")
	}
	d, err := h.parser.Parse(payload, c.Request().Header.Get(payment.SignatureHeader))
	if err != nil {
		if errors.Is(err, service.ErrPaymentVerificationFailed) {
			h.logger.Warn("webhook rejected", zap.String("client_ip", c.RealIP()), zap.Error(err))
			return respondError(c, err)
		}
		h.logger.Warn("webhook payload not understood", zap.Error(err))
		return badRequest(c, "malformed payload")
	}

	log := h.logger.With(zap.String("delivery_id", d.ID), zap.String("type", d.Type))
	if d.Confirmation == nil {
		log.Debug("webhook ignored")
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	outcome, err := h.confirmer.ConfirmPayment(c.Request().Context(), *d.Confirmation)
	if err != nil {
		log.Error("payment confirmation not stored", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "try again later", "code": "upstream_unavailable"})
	}
	log.Info("payment confirmation processed",
		zap.String("reservation_id", d.Confirmation.ReservationID),
		zap.String("outcome", string(outcome)))
	return c.JSON(http.StatusOK, echo.Map{"received": true, "outcome": outcome})
}
