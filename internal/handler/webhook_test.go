package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/line-event-reservation/internal/payment"
	"github.com/iliyamo/line-event-reservation/internal/service"
)

const webhookSecret = "whsec_handler"

type fakeConfirmer struct {
	got []service.PaymentConfirmation
	err error
}

func (f *fakeConfirmer) ConfirmPayment(_ context.Context, pc service.PaymentConfirmation) (service.ConfirmOutcome, error) {
	f.got = append(f.got, pc)
	if f.err != nil {
		return "", f.err
	}
	return service.ConfirmApplied, nil
}

func deliver(t *testing.T, h *WebhookHandler, payload []byte, sig string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewReader(payload))
	if sig != "" {
		req.Header.Set(payment.SignatureHeader, sig)
	}
	rec := httptest.NewRecorder()
	if err := h.Stripe(echo.New().NewContext(req, rec)); err != nil {
		t.Fatalf("Stripe: %v", err)
	}
	return rec
}

func sign(secret string, at time.Time, payload []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret, Timestamp: at}).Header
}

var paidSession = []byte(`{
  "id": "evt_9",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": "cs_test_9",
    "object": "checkout.session",
    "payment_status": "paid",
    "payment_intent": "pi_9",
    "metadata": {"reservation_id": "res-9"}
  }}
}`)

func TestWebhook_ConfirmsPaidCheckout(t *testing.T) {
	conf := &fakeConfirmer{}
	h := NewWebhookHandler(payment.NewVerifier(webhookSecret), conf, zaptest.NewLogger(t))

	rec := deliver(t, h, paidSession, sign(webhookSecret, time.Now(), paidSession))
	m := expect(t, rec, http.StatusOK, "")
	if m["received"] != true {
		t.Fatalf("body = %v", m)
	}
	if len(conf.got) != 1 {
		t.Fatalf("confirmations = %d", len(conf.got))
	}
	if got := conf.got[0]; got.ReservationID != "res-9" || got.SessionID != "cs_test_9" || got.PaymentIntentID != "pi_9" {
		t.Fatalf("confirmation = %+v", got)
	}
}

func TestWebhook_BadSignatureChangesNothing(t *testing.T) {
	conf := &fakeConfirmer{}
	h := NewWebhookHandler(payment.NewVerifier(webhookSecret), conf, zaptest.NewLogger(t))

	for name, sig := range map[string]string{
		"missing":   "",
		"wrong key": sign("whsec_other", time.Now(), paidSession),
		"stale":     sign(webhookSecret, time.Now().Add(-time.Hour), paidSession),
		"not a sig": "garbage",
	} {
		rec := deliver(t, h, paidSession, sig)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, rec.Code)
		}
	}
	if len(conf.got) != 0 {
		t.Fatalf("unverified delivery reached the lifecycle: %+v", conf.got)
	}
}

func TestWebhook_StoreFailureAsksForRetry(t *testing.T) {
	conf := &fakeConfirmer{err: errors.New("db down")}
	h := NewWebhookHandler(payment.NewVerifier(webhookSecret), conf, zaptest.NewLogger(t))

	rec := deliver(t, h, paidSession, sign(webhookSecret, time.Now(), paidSession))
	expect(t, rec, http.StatusServiceUnavailable, "upstream_unavailable")
}

func TestWebhook_OtherEventsAcknowledged(t *testing.T) {
	conf := &fakeConfirmer{}
	h := NewWebhookHandler(payment.NewVerifier(webhookSecret), conf, zaptest.NewLogger(t))

	body := []byte(`{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1","object":"charge"}}}`)
	rec := deliver(t, h, body, sign(webhookSecret, time.Now(), body))
	expect(t, rec, http.StatusOK, "")
	if len(conf.got) != 0 {
		t.Fatalf("non-checkout event confirmed: %+v", conf.got)
	}
}
