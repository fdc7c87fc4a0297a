package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/line-event-reservation/internal/model"
)

// activeStatusSQL must list the same statuses as model.ActiveStatuses.
const activeStatusSQL = `('pending','confirmed','checked_in')`

const reservationColumns = `id, user_id, event_id, status, payment_status, stripe_session_id,
	stripe_payment_intent_id, amount, checked_in_at, cancelled_at, created_at, updated_at`

const reservationViewSelect = `SELECT
	r.id, r.user_id, r.event_id, r.status, r.payment_status, r.stripe_session_id,
	r.stripe_payment_intent_id, r.amount, r.checked_in_at, r.cancelled_at, r.created_at, r.updated_at,
	e.id AS "event.id", e.title AS "event.title", e.event_date AS "event.event_date",
	e.venue AS "event.venue", e.price AS "event.price", e.image_url AS "event.image_url",
	u.id AS "user.id", u.display_name AS "user.display_name", u.email AS "user.email",
	u.picture_url AS "user.picture_url"
	FROM reservations r
	JOIN events e ON e.id = r.event_id
	JOIN users u ON u.id = r.user_id`

// ReservationRepo provides access to the reservations table.  Methods with
// a Tx suffix run inside a caller-owned transaction; the caller commits or
// rolls back.  All timestamps are stored in UTC.
type ReservationRepo struct {
	db *sqlx.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sqlx.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// InsertTx inserts a new reservation.  A second active reservation for the
// same (user, event) trips uq_reservations_active and yields ErrDuplicate.
func (r *ReservationRepo) InsertTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
		(id, user_id, event_id, status, payment_status, stripe_session_id, stripe_payment_intent_id,
		 amount, checked_in_at, cancelled_at, created_at, updated_at)
		VALUES (:id, :user_id, :event_id, :status, :payment_status, :stripe_session_id, :stripe_payment_intent_id,
		 :amount, :checked_in_at, :cancelled_at, :created_at, :updated_at)`
	_, err := tx.NamedExecContext(ctx, q, res)
	return translate(err)
}

// LockTx loads a reservation and holds its row lock until tx ends, so a
// status read here is still current when the following UpdateTx commits.
func (r *ReservationRepo) LockTx(ctx context.Context, tx *sqlx.Tx, id string) (*model.Reservation, error) {
	var res model.Reservation
	err := tx.GetContext(ctx, &res, "SELECT "+reservationColumns+" FROM reservations WHERE id = ? FOR UPDATE", id)
	if err != nil {
		return nil, translate(err)
	}
	return &res, nil
}

// UpdateTx writes back the mutable lifecycle columns.
func (r *ReservationRepo) UpdateTx(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	const q = `UPDATE reservations SET status = :status, payment_status = :payment_status,
		stripe_session_id = :stripe_session_id, stripe_payment_intent_id = :stripe_payment_intent_id,
		checked_in_at = :checked_in_at, cancelled_at = :cancelled_at, updated_at = :updated_at
		WHERE id = :id`
	_, err := tx.NamedExecContext(ctx, q, res)
	return translate(err)
}

// CountActiveTx counts active reservations for an event inside tx.
func (r *ReservationRepo) CountActiveTx(ctx context.Context, tx *sqlx.Tx, eventID string) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM reservations WHERE event_id = ? AND status IN "+activeStatusSQL, eventID)
	return n, err
}

// CountActive counts active reservations for an event outside any
// transaction.  The value is a snapshot and is never cached.
func (r *ReservationRepo) CountActive(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM reservations WHERE event_id = ? AND status IN "+activeStatusSQL, eventID)
	return n, err
}

// HasActiveTx reports whether the user already holds an active
// reservation for the event.
func (r *ReservationRepo) HasActiveTx(ctx context.Context, tx *sqlx.Tx, userID, eventID string) (bool, error) {
	var n int
	err := tx.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM reservations WHERE user_id = ? AND event_id = ? AND status IN "+activeStatusSQL,
		userID, eventID)
	return n > 0, err
}

// ListByUser returns a user's reservations, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID string) ([]model.ReservationView, error) {
	out := []model.ReservationView{}
	err := r.db.SelectContext(ctx, &out, reservationViewSelect+" WHERE r.user_id = ? ORDER BY r.created_at DESC", userID)
	return out, err
}

// ReservationFilter narrows List.  An empty EventID lists every event.
type ReservationFilter struct {
	EventID string
}

// List returns reservations for the admin console, newest first.
func (r *ReservationRepo) List(ctx context.Context, f ReservationFilter) ([]model.ReservationView, error) {
	out := []model.ReservationView{}
	var err error
	if f.EventID != "" {
		err = r.db.SelectContext(ctx, &out, reservationViewSelect+" WHERE r.event_id = ? ORDER BY r.created_at DESC", f.EventID)
	} else {
		err = r.db.SelectContext(ctx, &out, reservationViewSelect+" ORDER BY r.created_at DESC")
	}
	return out, err
}

// GetView loads one reservation with its event and owner.
func (r *ReservationRepo) GetView(ctx context.Context, id string) (*model.ReservationView, error) {
	var v model.ReservationView
	if err := r.db.GetContext(ctx, &v, reservationViewSelect+" WHERE r.id = ?", id); err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

// ListStalePending returns ids of unpaid pending reservations created
// before cutoff, oldest first.
func (r *ReservationRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM reservations WHERE status = 'pending' AND payment_status = 'unpaid' AND created_at < ?
		 ORDER BY created_at ASC LIMIT ?`, cutoff.UTC(), limit)
	return ids, err
}

// ReservationStats feeds the admin dashboard.
type ReservationStats struct {
	Attending int   `db:"attending" json:"attending"`
	Revenue   int64 `db:"revenue" json:"revenue"`
}

// Stats counts confirmed and checked-in reservations and sums what paid,
// still-active reservations brought in.
func (r *ReservationRepo) Stats(ctx context.Context) (ReservationStats, error) {
	var s ReservationStats
	err := r.db.GetContext(ctx, &s, `SELECT
		COALESCE(SUM(status IN ('confirmed','checked_in')), 0) AS attending,
		COALESCE(SUM(CASE WHEN payment_status = 'paid' THEN amount ELSE 0 END), 0) AS revenue
		FROM reservations WHERE status <> 'cancelled'`)
	return s, err
}
