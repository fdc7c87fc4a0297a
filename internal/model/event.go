package model

import "time"

// Event is a reservable happening, stored in the `events` table.
//
// Fields:
//
//	ID          – primary key (UUID).
//	Title       – display title, also the checkout line item name.
//	Description – free text shown on the event page.
//	ImageURL    – optional cover image (nullable).
//	EventDate   – when the event starts.
//	Venue       – where it takes place.
//	Price       – ticket price in whole yen; 0 means free.
//	Capacity    – ceiling on active reservations; 0 means unlimited.
//	IsPublished – only published events are visible and reservable.
//	CreatedBy   – admin who created the event.
type Event struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	ImageURL    *string   `db:"image_url" json:"image_url,omitempty"`
	EventDate   time.Time `db:"event_date" json:"event_date"`
	Venue       string    `db:"venue" json:"venue"`
	Price       int64     `db:"price" json:"price"`
	Capacity    int       `db:"capacity" json:"capacity"`
	IsPublished bool      `db:"is_published" json:"is_published"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// IsFree reports whether the event is reserved without payment.
func (e *Event) IsFree() bool { return e.Price <= 0 }

// Unlimited reports whether the event has no capacity ceiling.
func (e *Event) Unlimited() bool { return e.Capacity <= 0 }

// HasRoom reports whether one more active reservation fits next to
// activeCount existing ones.
func (e *Event) HasRoom(activeCount int) bool {
	return e.Unlimited() || activeCount < e.Capacity
}

// Remaining returns the free places left, or -1 for unlimited events.
func (e *Event) Remaining(activeCount int) int {
	if e.Unlimited() {
		return -1
	}
	if left := e.Capacity - activeCount; left > 0 {
		return left
	}
	return 0
}
