// Package service implements the reservation lifecycle: creation on the
// free and paid paths, payment confirmation, check-in and cancellation
// with refunds.  Every write runs inside one store transaction that first
// locks the row it depends on (the event for creation, the reservation
// for later transitions), so capacity, uniqueness and status checks are
// still true when the write commits.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/line-event-reservation/internal/model"
	"github.com/iliyamo/line-event-reservation/internal/repository"
)

const (
	defaultPaymentTimeout = 15 * time.Second
	defaultNotifyTimeout  = 10 * time.Second
)

// Options tunes a ReservationService.  Zero values select defaults.
type Options struct {
	// PendingTTL bounds how long a checkout may stay pending.  Zero keeps
	// pending reservations until the payment arrives.
	PendingTTL     time.Duration
	PaymentTimeout time.Duration
	NotifyTimeout  time.Duration
	Logger         *zap.Logger
}

// ReservationService is the reservation lifecycle engine.
type ReservationService struct {
	store    Store
	payments PaymentGateway
	notifier Notifier
	logger   *zap.Logger

	pendingTTL     time.Duration
	paymentTimeout time.Duration
	notifyTimeout  time.Duration

	now   func() time.Time
	newID func() string

	inflight sync.WaitGroup
}

// NewReservationService wires the engine.  store and payments are
// required; a nil notifier disables notifications.
func NewReservationService(store Store, payments PaymentGateway, notifier Notifier, opts Options) *ReservationService {
	if store == nil || payments == nil {
		panic("nil dependency passed to NewReservationService")
	}
	s := &ReservationService{
		store:          store,
		payments:       payments,
		notifier:       notifier,
		logger:         opts.Logger,
		pendingTTL:     opts.PendingTTL,
		paymentTimeout: opts.PaymentTimeout,
		notifyTimeout:  opts.NotifyTimeout,
		now:            func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID:          uuid.NewString,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.paymentTimeout <= 0 {
		s.paymentTimeout = defaultPaymentTimeout
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = defaultNotifyTimeout
	}
	return s
}

// CheckoutResult is returned by InitiatePaidCheckout.
type CheckoutResult struct {
	Reservation *model.Reservation
	URL         string
}

// CreateFreeReservation confirms a place at a free event immediately.
func (s *ReservationService) CreateFreeReservation(ctx context.Context, actor Actor, eventID string) (*model.Reservation, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}
	var res *model.Reservation
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		ev, err := s.admit(ctx, tx, actor, eventID, false)
		if err != nil {
			return err
		}
		now := s.now()
		res = &model.Reservation{
			ID:            s.newID(),
			UserID:        actor.UserID,
			EventID:       ev.ID,
			Status:        model.StatusConfirmed,
			PaymentStatus: model.PaymentUnpaid,
			Amount:        0,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return storeErr("insert reservation", tx.InsertReservation(ctx, res))
	})
	if err != nil {
		return nil, storeErr("create free reservation", err)
	}
	s.logger.Info("reservation confirmed",
		zap.String("reservation_id", res.ID), zap.String("event_id", eventID), zap.String("user_id", actor.UserID))
	s.dispatch(model.NotifyReservationConfirmed, res.ID, false)
	return res, nil
}

// InitiatePaidCheckout opens a pending reservation at a paid event and a
// hosted checkout session for it.  The pending reservation holds a
// capacity slot until it is confirmed, cancelled or expired.  If the
// provider call fails nothing is stored.
func (s *ReservationService) InitiatePaidCheckout(ctx context.Context, actor Actor, eventID string) (*CheckoutResult, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}
	out := &CheckoutResult{}
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		ev, err := s.admit(ctx, tx, actor, eventID, true)
		if err != nil {
			return err
		}
		now := s.now()
		res := &model.Reservation{
			ID:            s.newID(),
			UserID:        actor.UserID,
			EventID:       ev.ID,
			Status:        model.StatusPending,
			PaymentStatus: model.PaymentUnpaid,
			Amount:        ev.Price,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.InsertReservation(ctx, res); err != nil {
			return storeErr("insert reservation", err)
		}

		req := CheckoutRequest{
			ReservationID: res.ID,
			EventID:       ev.ID,
			UserID:        actor.UserID,
			Title:         ev.Title,
			Description:   ev.Venue,
			Amount:        ev.Price,
		}
		if ev.ImageURL != nil {
			req.ImageURL = *ev.ImageURL
		}
		if s.pendingTTL > 0 {
			req.ExpiresAt = now.Add(SessionTTL(s.pendingTTL))
		}
		// The event row stays locked across this call: a failed session
		// must roll back the pending row before another creator counts it.
		pctx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
		defer cancel()
		sess, err := s.payments.CreateCheckoutSession(pctx, req)
		if err != nil {
			return fmt.Errorf("%w: create checkout session: %v", ErrUpstreamUnavailable, err)
		}

		res.CheckoutSessionID = &sess.ID
		if err := tx.UpdateReservation(ctx, res); err != nil {
			return storeErr("store checkout session", err)
		}
		out.Reservation, out.URL = res, sess.URL
		return nil
	})
	if err != nil {
		return nil, storeErr("initiate checkout", err)
	}
	s.logger.Info("checkout initiated",
		zap.String("reservation_id", out.Reservation.ID), zap.String("event_id", eventID),
		zap.String("user_id", actor.UserID), zap.Int64("amount", out.Reservation.Amount))
	return out, nil
}

// admit locks the event and runs every creation precondition against the
// locked state.  The order decides which error a caller sees first.
func (s *ReservationService) admit(ctx context.Context, tx repository.Tx, actor Actor, eventID string, paid bool) (*model.Event, error) {
	ev, err := tx.LockEvent(ctx, eventID)
	if err != nil {
		return nil, storeErr("lock event", err)
	}
	if !ev.IsPublished {
		return nil, ErrNotPublished
	}
	if paid && ev.IsFree() {
		return nil, ErrNotPayable
	}
	if !paid && !ev.IsFree() {
		return nil, ErrCheckoutRequired
	}
	active, err := tx.CountActive(ctx, ev.ID)
	if err != nil {
		return nil, storeErr("count active", err)
	}
	if !ev.HasRoom(active) {
		return nil, ErrCapacityExceeded
	}
	dup, err := tx.HasActive(ctx, actor.UserID, ev.ID)
	if err != nil {
		return nil, storeErr("check duplicate", err)
	}
	if dup {
		return nil, ErrDuplicateReservation
	}
	return ev, nil
}
