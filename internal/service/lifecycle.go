package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/line-event-reservation/internal/model"
	"github.com/iliyamo/line-event-reservation/internal/repository"
)

// CancelResult is returned by Cancel.
type CancelResult struct {
	Reservation *model.Reservation
	Refunded    bool
}

// CheckIn marks an attendee as arrived.  Only admins may check people in,
// and only pending or confirmed reservations can be checked in.
func (s *ReservationService) CheckIn(ctx context.Context, actor Actor, reservationID string) (*model.Reservation, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	var res *model.Reservation
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := tx.LockReservation(ctx, reservationID)
		if err != nil {
			return storeErr("lock reservation", err)
		}
		switch r.Status {
		case model.StatusCancelled:
			return ErrAlreadyCancelled
		case model.StatusCheckedIn:
			return ErrAlreadyCheckedIn
		}
		now := s.now()
		r.Status = model.StatusCheckedIn
		r.CheckedInAt = &now
		r.UpdatedAt = now
		res = r
		return storeErr("update reservation", tx.UpdateReservation(ctx, r))
	})
	if err != nil {
		return nil, storeErr("check in", err)
	}
	s.logger.Info("reservation checked in", zap.String("reservation_id", res.ID), zap.String("by", actor.UserID))
	return res, nil
}

// Cancel ends a reservation for its owner or an admin.  A paid
// reservation is refunded first; if the refund does not succeed the
// reservation is left exactly as it was and ErrRefundFailed is returned.
func (s *ReservationService) Cancel(ctx context.Context, actor Actor, reservationID string) (*CancelResult, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}
	out := &CancelResult{}
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := tx.LockReservation(ctx, reservationID)
		if err != nil {
			return storeErr("lock reservation", err)
		}
		if !actor.CanManage(r) {
			return ErrForbidden
		}
		if r.Status == model.StatusCancelled {
			return ErrAlreadyCancelled
		}

		// The row lock makes this status the one we commit against, so
		// a concurrent cancel waits here and then sees "cancelled".
		if r.PaymentStatus == model.PaymentPaid && r.PaymentIntentID != nil && *r.PaymentIntentID != "" {
			if err := s.refund(ctx, *r.PaymentIntentID); err != nil {
				return err
			}
			r.PaymentStatus = model.PaymentRefunded
			out.Refunded = true
		}

		now := s.now()
		r.Status = model.StatusCancelled
		r.CancelledAt = &now
		r.UpdatedAt = now
		out.Reservation = r
		return storeErr("update reservation", tx.UpdateReservation(ctx, r))
	})
	if err != nil {
		if out.Refunded {
			s.logger.Error("refund issued but cancellation was not stored",
				zap.String("reservation_id", reservationID), zap.Error(err))
		}
		return nil, storeErr("cancel", err)
	}
	s.logger.Info("reservation cancelled",
		zap.String("reservation_id", reservationID), zap.String("by", actor.UserID), zap.Bool("refunded", out.Refunded))
	s.dispatch(model.NotifyReservationCancelled, reservationID, out.Refunded)
	return out, nil
}

// refund calls the provider under the payment timeout.  A timeout or
// cancellation counts as failure: an unknown outcome is never treated as
// refunded.
func (s *ReservationService) refund(ctx context.Context, paymentIntentID string) error {
	rctx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()
	if err := s.payments.Refund(rctx, paymentIntentID); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: outcome unknown: %v", ErrRefundFailed, err)
		}
		return fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}
	return nil
}
