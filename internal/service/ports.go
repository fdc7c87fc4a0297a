package service

import (
	"context"
	"time"

	"github.com/iliyamo/line-event-reservation/internal/model"
	"github.com/iliyamo/line-event-reservation/internal/repository"
)

// Store is the transactional relational store.  repository.Store
// satisfies it.
type Store interface {
	InTx(ctx context.Context, fn func(tx repository.Tx) error) error
	ActiveCount(ctx context.Context, eventID string) (int, error)
	ReservationView(ctx context.Context, id string) (*model.ReservationView, error)
	ListReservationsByUser(ctx context.Context, userID string) ([]model.ReservationView, error)
	ListReservations(ctx context.Context, eventID string) ([]model.ReservationView, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// CheckoutRequest describes the hosted checkout session to open for a
// pending reservation.
type CheckoutRequest struct {
	ReservationID string
	EventID       string
	UserID        string
	Title         string
	Description   string
	ImageURL      string
	Amount        int64
	ExpiresAt     time.Time // zero leaves the provider default
}

// CheckoutSession is the provider handle returned for a checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentGateway is the payment provider as seen by the lifecycle.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// ExpireCheckoutSession closes an open session so it can no longer be
	// paid.  completed reports a session that was paid before it could be
	// closed.
	ExpireCheckoutSession(ctx context.Context, sessionID string) (completed bool, err error)
	Refund(ctx context.Context, paymentIntentID string) error
}

// Notifier hands a notification to the delivery pipeline.  Errors are
// logged by the caller and never affect the lifecycle outcome.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}
