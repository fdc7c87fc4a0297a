package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/line-event-reservation/internal/model"
)

const eventColumns = `id, title, description, image_url, event_date, venue, price, capacity,
	is_published, created_by, created_at, updated_at`

// EventRepo provides access to the events table.
type EventRepo struct{ db *sqlx.DB }

func NewEventRepo(db *sqlx.DB) *EventRepo { return &EventRepo{db: db} }

// EventFilter narrows List.  UpcomingFrom keeps events starting at or
// after the given instant when non-zero.
type EventFilter struct {
	PublishedOnly bool
	UpcomingFrom  time.Time
}

// List returns events ordered by start time.
func (r *EventRepo) List(ctx context.Context, f EventFilter) ([]model.Event, error) {
	var (
		where []string
		args  []any
	)
	if f.PublishedOnly {
		where = append(where, "is_published = 1")
	}
	if !f.UpcomingFrom.IsZero() {
		where = append(where, "event_date >= ?")
		args = append(args, f.UpcomingFrom.UTC())
	}
	q := "SELECT " + eventColumns + " FROM events"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY event_date ASC, id ASC"

	events := []model.Event{}
	if err := r.db.SelectContext(ctx, &events, q, args...); err != nil {
		return nil, err
	}
	return events, nil
}

// GetByID loads one event.
func (r *EventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var ev model.Event
	err := r.db.GetContext(ctx, &ev, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	if err != nil {
		return nil, translate(err)
	}
	return &ev, nil
}

// LockTx loads an event and holds its row lock until tx ends.  Every
// reservation creator for the same event queues on this lock, which is
// what makes the capacity check and the insert one atomic step.
func (r *EventRepo) LockTx(ctx context.Context, tx *sqlx.Tx, id string) (*model.Event, error) {
	var ev model.Event
	err := tx.GetContext(ctx, &ev, "SELECT "+eventColumns+" FROM events WHERE id = ? FOR UPDATE", id)
	if err != nil {
		return nil, translate(err)
	}
	return &ev, nil
}

// Create inserts an event.  ID, CreatedAt and UpdatedAt must be set by
// the caller.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	const q = `INSERT INTO events
		(id, title, description, image_url, event_date, venue, price, capacity, is_published, created_by, created_at, updated_at)
		VALUES (:id, :title, :description, :image_url, :event_date, :venue, :price, :capacity, :is_published, :created_by, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, q, ev)
	return translate(err)
}

// Update overwrites the editable columns of an event.
func (r *EventRepo) Update(ctx context.Context, ev *model.Event) error {
	const q = `UPDATE events SET title = :title, description = :description, image_url = :image_url,
		event_date = :event_date, venue = :venue, price = :price, capacity = :capacity,
		is_published = :is_published, updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, q, ev)
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 for unchanged rows too; tell them apart.
		if _, err := r.GetByID(ctx, ev.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an event that has never been reserved.  Events with any
// reservation, cancelled or not, are kept so history stays intact.
func (r *EventRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := r.LockTx(ctx, tx, id); err != nil {
		return err
	}
	var n int
	if err := tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM reservations WHERE event_id = ?", id); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id); err != nil {
		return translate(err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Count returns the number of events.
func (r *EventRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM events")
	return n, err
}
