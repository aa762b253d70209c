package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Exchange is the durable topic exchange order events are published to.
const Exchange = "orders.events"

// Client owns one AMQP connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Dial connects to url and declares the events exchange.
func Dial(url string, log *zap.Logger) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}

	log.Info("rabbitmq connected", zap.String("exchange", Exchange))
	return &Client{conn: conn, channel: channel}, nil
}

func (c *Client) Channel() *amqp.Channel {
	return c.channel
}

// Close closes the channel and connection for graceful shutdown.
func (c *Client) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			return err
		}
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

type publishChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher publishes events as persistent JSON messages routed by type.
type AMQPPublisher struct {
	channel  publishChannel
	exchange string
}

func NewAMQPPublisher(c *Client) *AMQPPublisher {
	return &AMQPPublisher{channel: c.Channel(), exchange: Exchange}
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	err = p.channel.Publish(p.exchange, e.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.OrderID,
		Type:         e.Type,
		Timestamp:    e.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}
