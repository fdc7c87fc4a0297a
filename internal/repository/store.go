package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/line-event-reservation/internal/model"
)

// Tx is the set of reads and writes the reservation lifecycle performs
// inside one database transaction.
type Tx interface {
	LockEvent(ctx context.Context, id string) (*model.Event, error)
	CountActive(ctx context.Context, eventID string) (int, error)
	HasActive(ctx context.Context, userID, eventID string) (bool, error)
	InsertReservation(ctx context.Context, res *model.Reservation) error
	LockReservation(ctx context.Context, id string) (*model.Reservation, error)
	UpdateReservation(ctx context.Context, res *model.Reservation) error
}

// Store bundles the repositories behind a transactional facade.
type Store struct {
	db           *sqlx.DB
	Events       *EventRepo
	Reservations *ReservationRepo
	Users        *UserRepo
}

// NewStore wires the repositories to one connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:           db,
		Events:       NewEventRepo(db),
		Reservations: NewReservationRepo(db),
		Users:        NewUserRepo(db),
	}
}

// DB exposes the pool for health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

// InTx runs fn in a transaction and commits when fn returns nil.  Any
// error, including a panic inside fn, rolls back.
func (s *Store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ActiveCount is the capacity counter outside a transaction.
func (s *Store) ActiveCount(ctx context.Context, eventID string) (int, error) {
	return s.Reservations.CountActive(ctx, eventID)
}

// GetEvent loads an event without locking it.
func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.Events.GetByID(ctx, id)
}

// ReservationView loads a reservation with event and owner details.
func (s *Store) ReservationView(ctx context.Context, id string) (*model.ReservationView, error) {
	return s.Reservations.GetView(ctx, id)
}

// ListReservationsByUser lists one user's reservations.
func (s *Store) ListReservationsByUser(ctx context.Context, userID string) ([]model.ReservationView, error) {
	return s.Reservations.ListByUser(ctx, userID)
}

// ListReservations lists reservations, optionally for one event.
func (s *Store) ListReservations(ctx context.Context, eventID string) ([]model.ReservationView, error) {
	return s.Reservations.List(ctx, ReservationFilter{EventID: eventID})
}

// ListStalePending lists abandoned checkout reservations.
func (s *Store) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return s.Reservations.ListStalePending(ctx, cutoff, limit)
}

type sqlTx struct {
	tx *sqlx.Tx
	s  *Store
}

func (t *sqlTx) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	return t.s.Events.LockTx(ctx, t.tx, id)
}

func (t *sqlTx) CountActive(ctx context.Context, eventID string) (int, error) {
	return t.s.Reservations.CountActiveTx(ctx, t.tx, eventID)
}

func (t *sqlTx) HasActive(ctx context.Context, userID, eventID string) (bool, error) {
	return t.s.Reservations.HasActiveTx(ctx, t.tx, userID, eventID)
}

func (t *sqlTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	return t.s.Reservations.InsertTx(ctx, t.tx, res)
}

func (t *sqlTx) LockReservation(ctx context.Context, id string) (*model.Reservation, error) {
	return t.s.Reservations.LockTx(ctx, t.tx, id)
}

func (t *sqlTx) UpdateReservation(ctx context.Context, res *model.Reservation) error {
	return t.s.Reservations.UpdateTx(ctx, t.tx, res)
}

// Dashboard is the admin overview.
type Dashboard struct {
	Events int `json:"events"`
	Users  int `json:"users"`
	ReservationStats
}

// Dashboard gathers the admin overview counts.
func (s *Store) Dashboard(ctx context.Context) (Dashboard, error) {
	var (
		d   Dashboard
		err error
	)
	if d.Events, err = s.Events.Count(ctx); err != nil {
		return d, err
	}
	if d.Users, err = s.Users.Count(ctx); err != nil {
		return d, err
	}
	d.ReservationStats, err = s.Reservations.Stats(ctx)
	return d, err
}
