// Package events consumes identity events from an AMQP queue, for setups
// where the identity provider's webhooks are fanned out through a broker
// instead of hitting the HTTP endpoint directly.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lalith-99/mehfil/internal/apperr"
	"github.com/lalith-99/mehfil/internal/usersync"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	defaultPrefetch = 10
	handleTimeout   = 15 * time.Second
)

// ErrPoison marks a delivery that can never succeed. It is acked and
// dropped instead of being retried.
var ErrPoison = errors.New("poison message")

// RetryPolicy bounds redelivery of events that fail for transient reasons.
// A failed delivery is dead-lettered to "<queue>.dead", waits there for
// Delay, and returns to the queue. Once it has failed MaxAttempts times it
// is parked on "<queue>.final" for an operator to inspect.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy is used when a zero RetryPolicy is passed to Dial.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, Delay: 30 * time.Second}

// publisher is the part of *amqp.Channel used to park deliveries.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Dispatcher applies a decoded identity event.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventID string, ev usersync.Event) (usersync.Result, error)
}

type Consumer struct {
	conn       *amqp.Connection
	queue      string
	prefetch   int
	retry      RetryPolicy
	dispatcher Dispatcher
	logger     *zap.Logger
}

// Dial connects to the broker. The queues are declared when Run starts.
func Dial(url, queue string, retry RetryPolicy, dispatcher Dispatcher, logger *zap.Logger) (*Consumer, error) {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if retry.Delay <= 0 {
		retry.Delay = DefaultRetryPolicy.Delay
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	return &Consumer{
		conn:       conn,
		queue:      queue,
		prefetch:   defaultPrefetch,
		retry:      retry,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

func (c *Consumer) deadName() string  { return c.queue + ".dead" }
func (c *Consumer) finalName() string { return c.queue + ".final" }

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if err := c.declareTopology(ch); err != nil {
		return err
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("identity event consumer started",
		zap.String("queue", c.queue),
		zap.Int("max_attempts", c.retry.MaxAttempts),
		zap.Duration("retry_delay", c.retry.Delay),
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			c.handle(ctx, ch, d)
		}
	}
}

// declareTopology declares the main queue, the delay stage it dead-letters
// into, and the final queue for deliveries that ran out of attempts.
//
// The delay queue dead-letters through the default exchange, which routes
// by queue name, straight back to the main queue.
func (c *Consumer) declareTopology(ch *amqp.Channel) error {
	dead, final := c.deadName(), c.finalName()

	mainArgs := amqp.Table{"x-dead-letter-exchange": dead}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, mainArgs); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}

	if err := ch.ExchangeDeclare(dead, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", dead, err)
	}
	deadArgs := amqp.Table{
		"x-message-ttl":             int32(c.retry.Delay / time.Millisecond),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": c.queue,
	}
	if _, err := ch.QueueDeclare(dead, true, false, false, false, deadArgs); err != nil {
		return fmt.Errorf("declare queue %s: %w", dead, err)
	}
	if err := ch.QueueBind(dead, "", dead, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", dead, err)
	}

	if err := ch.ExchangeDeclare(final, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", final, err)
	}
	if _, err := ch.QueueDeclare(final, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", final, err)
	}
	if err := ch.QueueBind(final, "", final, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", final, err)
	}
	return nil
}

func (c *Consumer) Close() error {
	return c.conn.Close()
}

// handle acks on success and on poison. Other failures are rejected into
// the delay stage until the delivery has used up its attempts, after which
// it is parked on the final queue.
func (c *Consumer) handle(ctx context.Context, pub publisher, d amqp.Delivery) {
	log := c.logger.With(zap.String("message_id", d.MessageId))

	if attempts := deathCount(d, c.queue); attempts >= c.retry.MaxAttempts {
		if err := c.park(ctx, pub, d); err != nil {
			log.Error("failed to park identity event, retrying later", zap.Error(err))
			_ = d.Nack(false, false)
			return
		}
		log.Error("identity event out of attempts, parked",
			zap.Int("attempts", attempts),
			zap.String("queue", c.finalName()),
		)
		_ = d.Ack(false)
		return
	}

	hctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	err := c.process(hctx, d)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrPoison):
		log.Warn("dropping poison identity event", zap.Error(err))
		_ = d.Ack(false)
	default:
		log.Error("identity event failed, retrying later",
			zap.Int("attempt", deathCount(d, c.queue)+1),
			zap.Error(err),
		)
		_ = d.Nack(false, false)
	}
}

// park republishes d unchanged to the final exchange.
func (c *Consumer) park(ctx context.Context, pub publisher, d amqp.Delivery) error {
	contentType := d.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	return pub.PublishWithContext(ctx, c.finalName(), "", false, false, amqp.Publishing{
		ContentType:   contentType,
		Body:          d.Body,
		Headers:       d.Headers,
		MessageId:     d.MessageId,
		CorrelationId: d.CorrelationId,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now(),
		Type:          d.Type,
	})
}

// deathCount is how many times d was dead-lettered out of queue, read from
// the x-death header the broker maintains.
func deathCount(d amqp.Delivery, queue string) int {
	deaths, ok := d.Headers["x-death"].([]any)
	if !ok {
		return 0
	}
	for _, it := range deaths {
		death, ok := it.(amqp.Table)
		if !ok {
			continue
		}
		if q, _ := death["queue"].(string); q != queue {
			continue
		}
		if n, ok := death["count"].(int64); ok {
			return int(n)
		}
	}
	return 0
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery) error {
	ev, err := usersync.Decode(d.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPoison, err)
	}

	if _, err := c.dispatcher.Dispatch(ctx, d.MessageId, ev); err != nil {
		if apperr.CodeOf(err) == apperr.CodeValidation {
			return fmt.Errorf("%w: %w", ErrPoison, err)
		}
		return err
	}
	return nil
}
