package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/line-event-reservation/internal/model"
)

// dispatch hands a notification to the notifier off the request path.
// It runs after the lifecycle transaction has committed and uses its own
// bounded context, so a slow or failing notifier never changes the
// outcome the caller already received.
func (s *ReservationService) dispatch(kind model.NotificationKind, reservationID string, refunded bool) {
	if s.notifier == nil {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("notification dispatch panicked", zap.Any("panic", p), zap.String("reservation_id", reservationID))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		log := s.logger.With(zap.String("kind", string(kind)), zap.String("reservation_id", reservationID))
		v, err := s.store.ReservationView(ctx, reservationID)
		if err != nil {
			log.Warn("load reservation for notification", zap.Error(err))
			return
		}
		if v.User.Email == nil || *v.User.Email == "" {
			log.Debug("no email on profile; notification skipped")
			return
		}
		n := model.Notification{
			Kind:          kind,
			ReservationID: v.ID,
			To:            *v.User.Email,
			DisplayName:   v.User.DisplayName,
			EventTitle:    v.Event.Title,
			EventDate:     v.Event.EventDate,
			Venue:         v.Event.Venue,
			Amount:        v.Amount,
			Refunded:      refunded,
			OccurredAt:    s.now(),
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			log.Warn("notification not delivered", zap.Error(err))
			return
		}
		log.Debug("notification queued")
	}()
}

// Wait blocks until every dispatched notification has been handed off.
// Call it during shutdown.
func (s *ReservationService) Wait() { s.inflight.Wait() }
