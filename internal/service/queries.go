package service

import (
	"context"

	"github.com/iliyamo/line-event-reservation/internal/model"
)

// ActiveCount is the capacity counter: the number of pending, confirmed
// and checked-in reservations for an event.
func (s *ReservationService) ActiveCount(ctx context.Context, eventID string) (int, error) {
	n, err := s.store.ActiveCount(ctx, eventID)
	if err != nil {
		return 0, storeErr("active count", err)
	}
	return n, nil
}

// ListMine returns the caller's reservations, newest first.
func (s *ReservationService) ListMine(ctx context.Context, actor Actor) ([]model.ReservationView, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}
	list, err := s.store.ListReservationsByUser(ctx, actor.UserID)
	if err != nil {
		return nil, storeErr("list reservations", err)
	}
	return list, nil
}

// ListAll returns every reservation, or one event's when eventID is set.
// Admin only.
func (s *ReservationService) ListAll(ctx context.Context, actor Actor, eventID string) ([]model.ReservationView, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	list, err := s.store.ListReservations(ctx, eventID)
	if err != nil {
		return nil, storeErr("list reservations", err)
	}
	return list, nil
}

// Get returns one reservation to its owner or an admin.
func (s *ReservationService) Get(ctx context.Context, actor Actor, id string) (*model.ReservationView, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}
	v, err := s.store.ReservationView(ctx, id)
	if err != nil {
		return nil, storeErr("get reservation", err)
	}
	if !actor.CanManage(&v.Reservation) {
		return nil, ErrForbidden
	}
	return v, nil
}
