package consumer

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"go-event-hub/internal/infrastructure/config"
	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
)

// Consumer reads platform messages from a RabbitMQ queue and feeds them into
// the hub as routed events. Malformed messages are logged and acknowledged;
// redelivering them would never make them parseable.
type Consumer struct {
	cfg    config.AMQPConfig
	hub    *hub.Hub
	logger logger.Logger

	conn    *amqp.Connection
	channel *amqp.Channel
}

func New(cfg config.AMQPConfig, hubInstance *hub.Hub, log logger.Logger) (*Consumer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	if cfg.Queue == "" {
		return nil, fmt.Errorf("amqp queue is required")
	}
	return &Consumer{
		cfg:    cfg,
		hub:    hubInstance,
		logger: log.WithField("component", "consumer"),
	}, nil
}

// Start connects, declares the queue and launches the delivery loop. The loop
// ends when the context is cancelled or the broker closes the channel.
func (c *Consumer) Start(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to amqp broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open amqp channel: %w", err)
	}

	if _, err := channel.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare queue %s: %w", c.cfg.Queue, err)
	}

	deliveries, err := channel.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to consume queue %s: %w", c.cfg.Queue, err)
	}

	c.conn = conn
	c.channel = channel

	go c.run(ctx, deliveries)

	c.logger.Infof("consuming queue %s", c.cfg.Queue)
	return nil
}

func (c *Consumer) run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery channel closed by broker")
				return
			}
			c.handle(d.Body)
			if err := d.Ack(false); err != nil {
				c.logger.Errorf("failed to ack delivery: %v", err)
			}
		}
	}
}

func (c *Consumer) handle(body []byte) {
	ev, route, err := Translate(body)
	if err != nil {
		c.logger.Warnf("dropping unparseable message: %v", err)
		return
	}

	if route.UserID != "" {
		c.hub.SendToUser(route.UserID, route.OrgID, ev)
		return
	}
	c.hub.SendToOrg(route.OrgID, ev)
}

// Close tears down the channel and connection.
func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
