// Package amqp publishes and consumes the engine's domain events over
// RabbitMQ. One direct exchange carries two routing keys, one per queue:
// closures and resets.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	closureQueue string
	resetQueue   string
}

func NewClient(url, exchangeName, closureQueue, resetQueue string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		closureQueue: closureQueue,
		resetQueue:   resetQueue,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.closureQueue, c.resetQueue} {
		_, err = c.channel.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key matches the queue name on a direct exchange.
		err = c.channel.QueueBind(queue, queue, c.exchangeName, false, nil)
		if err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// PublishClosureGenerated implements ports.EventPublisher.
func (c *Client) PublishClosureGenerated(ctx context.Context, closureID, version int64) error {
	body, err := NewClosureGeneratedMessage(closureID, version).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal closure message: %w", err)
	}
	if err := c.publish(ctx, c.closureQueue, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published closure generated message",
		"closure_id", closureID,
		"version", version,
		"exchange", c.exchangeName,
		"queue", c.closureQueue)
	return nil
}

// PublishResetExecuted implements ports.EventPublisher.
func (c *Client) PublishResetExecuted(ctx context.Context, ownerID string, period core.Period, summary core.ResetSummary) error {
	body, err := NewResetExecutedMessage(ownerID, period, summary).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal reset message: %w", err)
	}
	if err := c.publish(ctx, c.resetQueue, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published reset executed message",
		"owner", ownerID,
		"period", period.Key(),
		"exchange", c.exchangeName,
		"queue", c.resetQueue)
	return nil
}

// ConsumeClosureGenerated delivers closure messages to handler until the
// context is cancelled. Handler errors requeue the message; undecodable
// payloads are dropped.
func (c *Client) ConsumeClosureGenerated(ctx context.Context, handler func(*ClosureGeneratedMessage) error) error {
	return consume(ctx, c.channel, c.closureQueue, ClosureGeneratedMessageFromJSON, handler)
}

// ConsumeResetExecuted delivers reset messages to handler until the context
// is cancelled.
func (c *Client) ConsumeResetExecuted(ctx context.Context, handler func(*ResetExecutedMessage) error) error {
	return consume(ctx, c.channel, c.resetQueue, ResetExecutedMessageFromJSON, handler)
}

func consume[M any](ctx context.Context, channel *amqp091.Channel, queue string, decode func([]byte) (*M, error), handler func(*M) error) error {
	msgs, err := channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming messages", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := decode(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "queue", queue, "error", err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handler(msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message", "queue", queue, "error", err)
				delivery.Nack(false, true) // reject and requeue
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// exponentialBackoff returns the wait before reconnect attempt n, doubling
// from one second and capped at thirty.
func exponentialBackoff(attempt int) time.Duration {
	backoff := time.Second * time.Duration(1<<uint(attempt))
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, fragment := range []string{"connection refused", "connection closed", "connection reset", "EOF", "broken pipe", "channel closed"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// ConsumeClosureGeneratedWithReconnect keeps a consumer alive across broker
// restarts, redialing with exponential backoff on connection errors.
func ConsumeClosureGeneratedWithReconnect(ctx context.Context, url, exchangeName, closureQueue, resetQueue string, handler func(*ClosureGeneratedMessage) error) error {
	attempt := 0
	for {
		client, err := NewClient(url, exchangeName, closureQueue, resetQueue)
		if err != nil {
			if !isConnectionError(err) {
				return err
			}
			wait := exponentialBackoff(attempt)
			attempt++
			slog.WarnContext(ctx, "AMQP connect failed, retrying", "error", err, "wait", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		attempt = 0
		err = client.ConsumeClosureGenerated(ctx, handler)
		client.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}
		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "AMQP consumer dropped, reconnecting", "error", err, "wait", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
