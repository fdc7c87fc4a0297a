package model

import "time"

// NotificationKind selects the email template.
type NotificationKind string

const (
	NotifyReservationConfirmed NotificationKind = "reservation.confirmed"
	NotifyReservationCancelled NotificationKind = "reservation.cancelled"
)

// Notification is the message handed to the notification queue.  It is
// self-contained so the consumer never reads the primary database.
type Notification struct {
	Kind          NotificationKind `json:"kind"`
	ReservationID string           `json:"reservation_id"`
	To            string           `json:"to"`
	DisplayName   string           `json:"display_name"`
	EventTitle    string           `json:"event_title"`
	EventDate     time.Time        `json:"event_date"`
	Venue         string           `json:"venue"`
	Amount        int64            `json:"amount"`
	Refunded      bool             `json:"refunded,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}
