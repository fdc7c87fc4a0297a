package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/line-event-reservation/internal/model"
	"github.com/iliyamo/line-event-reservation/internal/repository"
)

const (
	minSessionTTL = 30 * time.Minute
	maxSessionTTL = 24 * time.Hour

	// expiryGrace leaves room for a confirmation that was sent just before
	// the checkout session closed.
	expiryGrace = 5 * time.Minute
	expiryBatch = 100
)

// SessionTTL clamps a pending lifetime to the range the payment provider
// accepts for checkout session expiry.
func SessionTTL(d time.Duration) time.Duration {
	switch {
	case d < minSessionTTL:
		return minSessionTTL
	case d > maxSessionTTL:
		return maxSessionTTL
	default:
		return d
	}
}

// ExpireStalePending cancels pending, unpaid reservations whose checkout
// session can no longer complete, releasing their capacity.  It is a
// no-op unless a pending TTL is configured.  It returns how many
// reservations were expired.
func (s *ReservationService) ExpireStalePending(ctx context.Context) (int, error) {
	if s.pendingTTL <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-SessionTTL(s.pendingTTL) - expiryGrace)
	ids, err := s.store.ListStalePending(ctx, cutoff, expiryBatch)
	if err != nil {
		return 0, storeErr("list stale pending", err)
	}

	expired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		done, err := s.expireOne(ctx, id)
		if err != nil {
			s.logger.Warn("expire pending reservation", zap.String("reservation_id", id), zap.Error(err))
			continue
		}
		if done {
			expired++
		}
	}
	if expired > 0 {
		s.logger.Info("expired stale checkouts", zap.Int("count", expired))
	}
	return expired, nil
}

func (s *ReservationService) expireOne(ctx context.Context, id string) (bool, error) {
	done := false
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		r, err := tx.LockReservation(ctx, id)
		if err != nil {
			return storeErr("lock reservation", err)
		}
		// A confirmation may have landed since the listing.
		if r.Status != model.StatusPending || r.PaymentStatus != model.PaymentUnpaid {
			return nil
		}
		// Close the session first so no payment can arrive for a cancelled
		// row.  A session paid in the meantime keeps its reservation; the
		// completion webhook will confirm it.
		if r.CheckoutSessionID != nil && *r.CheckoutSessionID != "" {
			pctx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
			completed, err := s.payments.ExpireCheckoutSession(pctx, *r.CheckoutSessionID)
			cancel()
			if err != nil {
				return fmt.Errorf("%w: expire checkout session: %v", ErrUpstreamUnavailable, err)
			}
			if completed {
				s.logger.Info("stale checkout was paid; awaiting confirmation", zap.String("reservation_id", id))
				return nil
			}
		}
		now := s.now()
		r.Status = model.StatusCancelled
		r.CancelledAt = &now
		r.UpdatedAt = now
		done = true
		return storeErr("update reservation", tx.UpdateReservation(ctx, r))
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return done && err == nil, err
}
