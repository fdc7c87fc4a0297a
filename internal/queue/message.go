// Package queue moves reservation notifications through RabbitMQ: the API
// publishes them after a lifecycle change commits and the worker consumes
// them and sends the emails.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/line-event-reservation/internal/model"
)

// NotificationQueue is the durable queue notifications are routed to.
const NotificationQueue = "reservation.notifications"

// ErrInvalidMessage marks a delivery that can never be processed.
var ErrInvalidMessage = errors.New("invalid notification message")

// Encode wraps a notification in a persistent JSON publishing.
func Encode(n model.Notification) (amqp.Publishing, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal notification: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(n.Kind),
		MessageId:    string(n.Kind) + ":" + n.ReservationID,
		Body:         body,
	}, nil
}

// Decode parses and validates a delivery body.
func Decode(body []byte) (model.Notification, error) {
	var n model.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return n, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch n.Kind {
	case model.NotifyReservationConfirmed, model.NotifyReservationCancelled:
	default:
		return n, fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, n.Kind)
	}
	if n.To == "" || n.ReservationID == "" {
		return n, fmt.Errorf("%w: missing recipient or reservation", ErrInvalidMessage)
	}
	return n, nil
}
