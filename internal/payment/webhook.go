package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/iliyamo/line-event-reservation/internal/service"
)

// Metadata keys set on every checkout session.
const (
	MetaReservationID = "reservation_id"
	MetaEventID       = "event_id"
	MetaUserID        = "user_id"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// Tolerance is how old a delivery timestamp may be.
const Tolerance = 5 * time.Minute

// ErrMalformedPayload is returned for a correctly signed body that does
// not decode.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Delivery is a verified webhook.  Confirmation is set only for a
// completed checkout whose payment has been collected.
type Delivery struct {
	ID           string
	Type         string
	Confirmation *service.PaymentConfirmation
}

// Verifier authenticates webhook deliveries with the endpoint secret.
type Verifier struct {
	secret string
}

// NewVerifier returns a Verifier for the endpoint signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Parse verifies and decodes a delivery.  Signature failures wrap
// service.ErrPaymentVerificationFailed.  Events are accepted whatever API
// version the endpoint was created with; only the checkout session fields
// read below are relied on.
func (v *Verifier) Parse(payload []byte, header string) (*Delivery, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		Tolerance:                Tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if signatureError(err) {
			return nil, fmt.Errorf("%w: %v", service.ErrPaymentVerificationFailed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	d := &Delivery{ID: ev.ID, Type: string(ev.Type)}
	switch ev.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
	default:
		return d, nil
	}
	if ev.Data == nil {
		return d, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: checkout session: %v", ErrMalformedPayload, err)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return d, nil
	}
	pc := &service.PaymentConfirmation{
		ReservationID: sess.Metadata[MetaReservationID],
		SessionID:     sess.ID,
	}
	if pc.ReservationID == "" {
		pc.ReservationID = sess.ClientReferenceID
	}
	if sess.PaymentIntent != nil {
		pc.PaymentIntentID = sess.PaymentIntent.ID
	}
	d.Confirmation = pc
	return d, nil
}

func signatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
