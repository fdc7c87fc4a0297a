package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/line-event-reservation/internal/model"
)

// Handler delivers one notification.
type Handler interface {
	Handle(ctx context.Context, n model.Notification) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, n model.Notification) error

func (f HandlerFunc) Handle(ctx context.Context, n model.Notification) error { return f(ctx, n) }

// Consumer drains the notification queue into a Handler.
type Consumer struct {
	url     string
	handler Handler
	logger  *zap.Logger

	// HandleTimeout bounds one Handle call.
	HandleTimeout time.Duration
}

// NewConsumer returns a Consumer for the broker at url.
func NewConsumer(url string, h Handler, logger *zap.Logger) *Consumer {
	if url == "" {
		url = DefaultURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{url: url, handler: h, logger: logger.Named("consumer"), HandleTimeout: 30 * time.Second}
}

// Run connects to RabbitMQ, declares the queue and consumes until ctx is
// cancelled.  Connection failures are retried with exponential backoff up
// to 30s; Run only returns once ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("set QoS failed", zap.Error(err))
	}
	if err := declare(ch); err != nil {
		return err
	}
	msgs, err := ch.Consume(NotificationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.logger.Info("consuming", zap.String("queue", NotificationQueue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle processes one delivery and settles it.  Undecodable messages are
// dropped.  A failed send is requeued once; a second failure drops it to
// avoid a tight redelivery loop.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	n, err := Decode(d.Body)
	if err != nil {
		c.logger.Error("dropping message", zap.Error(err), zap.String("message_id", d.MessageId))
		_ = d.Nack(false, false)
		return
	}
	log := c.logger.With(zap.String("kind", string(n.Kind)), zap.String("reservation_id", n.ReservationID))

	hctx, cancel := context.WithTimeout(ctx, c.HandleTimeout)
	defer cancel()
	if err := c.handler.Handle(hctx, n); err != nil {
		requeue := !d.Redelivered
		log.Warn("handle notification failed", zap.Error(err), zap.Bool("requeue", requeue))
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
	log.Info("notification delivered")
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
