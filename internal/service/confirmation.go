package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/line-event-reservation/internal/model"
	"github.com/iliyamo/line-event-reservation/internal/repository"
)

// PaymentConfirmation is a verified "checkout completed and paid" event
// from the provider.
type PaymentConfirmation struct {
	ReservationID   string
	SessionID       string
	PaymentIntentID string
}

// ConfirmOutcome says what ConfirmPayment did with a confirmation.
type ConfirmOutcome string

const (
	ConfirmApplied            ConfirmOutcome = "applied"
	ConfirmAlreadyApplied     ConfirmOutcome = "already_applied"
	ConfirmIgnored            ConfirmOutcome = "ignored"
	ConfirmRefunded           ConfirmOutcome = "refunded"
	ConfirmUnknownReservation ConfirmOutcome = "unknown_reservation"
)

// ConfirmPayment applies a provider confirmation.  Providers redeliver, so
// applying the same confirmation twice leaves the same state as applying
// it once.  Money that arrives for a cancelled reservation is refunded.
// A store or refund failure returns an error; the caller should then let
// the provider retry.
func (s *ReservationService) ConfirmPayment(ctx context.Context, pc PaymentConfirmation) (ConfirmOutcome, error) {
	log := s.logger.With(zap.String("reservation_id", pc.ReservationID), zap.String("session_id", pc.SessionID))
	if pc.ReservationID == "" {
		log.Warn("payment confirmation without reservation reference")
		return ConfirmUnknownReservation, nil
	}

	outcome := ConfirmIgnored
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := tx.LockReservation(ctx, pc.ReservationID)
		if err != nil {
			return storeErr("lock reservation", err)
		}
		if r.PaymentStatus == model.PaymentPaid || r.PaymentStatus == model.PaymentRefunded {
			outcome = ConfirmAlreadyApplied
			return nil
		}
		now := s.now()
		switch r.Status {
		case model.StatusCancelled:
			// Cancelled is terminal, so the money goes back instead.  The
			// stored intent marks the refund as done for redeliveries.
			if pc.PaymentIntentID == "" {
				outcome = ConfirmIgnored
				return nil
			}
			if r.PaymentIntentID != nil && *r.PaymentIntentID == pc.PaymentIntentID {
				outcome = ConfirmAlreadyApplied
				return nil
			}
			if err := s.refund(ctx, pc.PaymentIntentID); err != nil {
				return err
			}
			r.PaymentIntentID = &pc.PaymentIntentID
			if pc.SessionID != "" && r.CheckoutSessionID == nil {
				r.CheckoutSessionID = &pc.SessionID
			}
			r.UpdatedAt = now
			outcome = ConfirmRefunded
			return storeErr("update reservation", tx.UpdateReservation(ctx, r))
		case model.StatusPending:
			r.Status = model.StatusConfirmed
			outcome = ConfirmApplied
		case model.StatusConfirmed, model.StatusCheckedIn:
			// Already admitted without the payment recorded.
			outcome = ConfirmApplied
		}
		r.PaymentStatus = model.PaymentPaid
		if pc.PaymentIntentID != "" {
			r.PaymentIntentID = &pc.PaymentIntentID
		}
		if pc.SessionID != "" && r.CheckoutSessionID == nil {
			r.CheckoutSessionID = &pc.SessionID
		}
		r.UpdatedAt = now
		return storeErr("update reservation", tx.UpdateReservation(ctx, r))
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		log.Warn("payment confirmation for unknown reservation")
		return ConfirmUnknownReservation, nil
	default:
		log.Error("payment confirmation failed", zap.Error(err))
		return "", err
	}

	switch outcome {
	case ConfirmApplied:
		log.Info("payment confirmed", zap.String("payment_intent_id", pc.PaymentIntentID))
		s.dispatch(model.NotifyReservationConfirmed, pc.ReservationID, false)
	case ConfirmAlreadyApplied:
		log.Debug("duplicate payment confirmation")
	case ConfirmRefunded:
		log.Warn("payment for cancelled reservation refunded", zap.String("payment_intent_id", pc.PaymentIntentID))
		s.dispatch(model.NotifyReservationCancelled, pc.ReservationID, true)
	case ConfirmIgnored:
		log.Error("payment for cancelled reservation has no payment intent; refund by hand")
	}
	return outcome, nil
}
