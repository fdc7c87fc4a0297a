// Package payment talks to Stripe: hosted checkout sessions, refunds and
// signed webhook deliveries.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/iliyamo/line-event-reservation/internal/service"
)

// Config configures a Gateway.
type Config struct {
	SecretKey string
	Currency  string // ISO code, lower case; "jpy" when empty
	BaseURL   string // where checkout returns the browser
	Locale    string // checkout page language; "ja" when empty

	// Backends overrides the Stripe API endpoints.  Nil uses the live API.
	Backends *stripe.Backends
}

// Gateway implements service.PaymentGateway on the Stripe API.
type Gateway struct {
	api      *client.API
	currency string
	baseURL  string
	locale   string
}

// NewGateway builds a Gateway from cfg.
func NewGateway(cfg Config) *Gateway {
	g := &Gateway{
		api:      client.New(cfg.SecretKey, cfg.Backends),
		currency: cfg.Currency,
		baseURL:  cfg.BaseURL,
		locale:   cfg.Locale,
	}
	if g.currency == "" {
		g.currency = string(stripe.CurrencyJPY)
	}
	if g.locale == "" {
		g.locale = "ja"
	}
	return g
}

// CreateCheckoutSession opens a one-item payment session for a pending
// reservation.  The reservation id travels in the session metadata and
// comes back in the completion webhook.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutSession, error) {
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.Title),
	}
	if req.Description != "" {
		product.Description = stripe.String(req.Description)
	}
	if req.ImageURL != "" {
		product.Images = stripe.StringSlice([]string{req.ImageURL})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(g.currency),
				UnitAmount:  stripe.Int64(req.Amount),
				ProductData: product,
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(g.returnURL(req.EventID, "success") + "&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(g.returnURL(req.EventID, "cancel")),
		ClientReferenceID: stripe.String(req.ReservationID),
		Locale:            stripe.String(g.locale),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"reservation_id": req.ReservationID},
		},
	}
	if !req.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
	}
	params.AddMetadata(MetaReservationID, req.ReservationID)
	params.AddMetadata(MetaEventID, req.EventID)
	params.AddMetadata(MetaUserID, req.UserID)
	params.SetIdempotencyKey("checkout-" + req.ReservationID)
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", describe(err))
	}
	return &service.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ExpireCheckoutSession closes an open session.  The provider refuses to
// expire a session that is no longer open, so on that refusal the session
// is fetched to tell a paid one from one that already expired.
func (g *Gateway) ExpireCheckoutSession(ctx context.Context, sessionID string) (bool, error) {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	sess, err := g.api.CheckoutSessions.Expire(sessionID, params)
	if err == nil {
		return sess.Status == stripe.CheckoutSessionStatusComplete, nil
	}
	var se *stripe.Error
	if !errors.As(err, &se) {
		return false, fmt.Errorf("expire checkout session %s: %w", sessionID, err)
	}
	switch {
	case se.Code == stripe.ErrorCodeResourceMissing:
		return false, nil
	case se.HTTPStatusCode != http.StatusBadRequest:
		return false, fmt.Errorf("expire checkout session %s: %w", sessionID, describe(err))
	}

	get := &stripe.CheckoutSessionParams{}
	get.Context = ctx
	sess, gerr := g.api.CheckoutSessions.Get(sessionID, get)
	if gerr != nil {
		return false, fmt.Errorf("get checkout session %s: %w", sessionID, describe(gerr))
	}
	switch sess.Status {
	case stripe.CheckoutSessionStatusComplete:
		return true, nil
	case stripe.CheckoutSessionStatusExpired:
		return false, nil
	}
	return false, fmt.Errorf("expire checkout session %s: %w", sessionID, describe(err))
}

// Refund refunds a captured payment in full.  The idempotency key makes a
// retry for the same payment return the original refund.
func (g *Gateway) Refund(ctx context.Context, paymentIntentID string) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentIntentID)}
	params.SetIdempotencyKey("refund-" + paymentIntentID)
	params.Context = ctx
	if _, err := g.api.Refunds.New(params); err != nil {
		return fmt.Errorf("refund %s: %w", paymentIntentID, describe(err))
	}
	return nil
}

func (g *Gateway) returnURL(eventID, status string) string {
	q := url.Values{}
	q.Set("event_id", eventID)
	q.Set("status", status)
	return g.baseURL + "/checkout?" + q.Encode()
}

// describe flattens a Stripe API error into code and message.
func describe(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return fmt.Errorf("stripe %s (%d): %s: %w", se.Code, se.HTTPStatusCode, se.Msg, err)
	}
	return err
}
