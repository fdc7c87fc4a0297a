package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCheckedIn ReservationStatus = "checked_in"
)

// Active reports whether the status counts against capacity and the
// one-reservation-per-user rule.
func (s ReservationStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusCheckedIn
}

// ActiveStatuses lists the statuses counted by the capacity counter.
var ActiveStatuses = []ReservationStatus{StatusPending, StatusConfirmed, StatusCheckedIn}

// PaymentStatus tracks money movement for a reservation.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Reservation records one user's place at one event.  Rows are never
// deleted; cancellation is a terminal status.
//
// Fields:
//
//	ID                – primary key (UUID).
//	UserID            – owner of the reservation.
//	EventID           – reserved event.
//	Status            – pending, confirmed, cancelled or checked_in.
//	PaymentStatus     – unpaid, paid or refunded.
//	CheckoutSessionID – hosted checkout session (paid path only).
//	PaymentIntentID   – captured payment, required for refunds.
//	Amount            – charged amount; 0 on the free path.
//	CheckedInAt       – set once by check-in.
//	CancelledAt       – set once by cancellation.
type Reservation struct {
	ID                string            `db:"id" json:"id"`
	UserID            string            `db:"user_id" json:"user_id"`
	EventID           string            `db:"event_id" json:"event_id"`
	Status            ReservationStatus `db:"status" json:"status"`
	PaymentStatus     PaymentStatus     `db:"payment_status" json:"payment_status"`
	CheckoutSessionID *string           `db:"stripe_session_id" json:"checkout_session_id,omitempty"`
	PaymentIntentID   *string           `db:"stripe_payment_intent_id" json:"payment_intent_id,omitempty"`
	Amount            int64             `db:"amount" json:"amount"`
	CheckedInAt       *time.Time        `db:"checked_in_at" json:"checked_in_at,omitempty"`
	CancelledAt       *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// EventSummary is the slice of an event embedded in reservation listings.
type EventSummary struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	EventDate time.Time `db:"event_date" json:"event_date"`
	Venue     string    `db:"venue" json:"venue"`
	Price     int64     `db:"price" json:"price"`
	ImageURL  *string   `db:"image_url" json:"image_url,omitempty"`
}

// UserSummary is the slice of a profile embedded in admin listings.
type UserSummary struct {
	ID          string  `db:"id" json:"id"`
	DisplayName string  `db:"display_name" json:"display_name"`
	Email       *string `db:"email" json:"email,omitempty"`
	PictureURL  *string `db:"picture_url" json:"picture_url,omitempty"`
}

// ReservationView is a reservation joined with its event and owner.
type ReservationView struct {
	Reservation
	Event EventSummary `db:"event" json:"event"`
	User  UserSummary  `db:"user" json:"user"`
}
