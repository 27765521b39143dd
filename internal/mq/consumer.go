package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// MessageHandler processes one delivery. A nil return acks the message;
// an error NACKs it to the DLQ. Business rejections (bad timestamps,
// org mismatch and the rest) must therefore be handled inside the
// processor and return nil, or every malformed submission would loop
// through the dead letter queue.
type MessageHandler func(ctx context.Context, body []byte) error

// Consumer drains one queue of the worker: either meter read submissions
// or certificate issuance events. Both share the DLQ.
type Consumer struct {
	conn          *Connection
	channel       *amqp.Channel
	name          string
	queue         string
	dlqQueue      string
	exchange      string
	routingKey    string
	prefetchCount int
	logger        *zap.Logger
	handler       MessageHandler
}

// ConsumerConfig holds consumer configuration. Name labels the consumer's
// role (ingest, issuance) in logs and in the broker's consumer tag.
type ConsumerConfig struct {
	Connection       *Connection
	Name             string
	Queue            string
	DLQQueue         string
	Exchange         string
	RoutingKey       string
	PrefetchCount    int
	Logger           *zap.Logger
	MessageProcessor MessageHandler
}

// NewConsumer opens a channel, declares the topology and binds the queue.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	ch, err := cfg.Connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		return nil, err
	}

	return &Consumer{
		conn:          cfg.Connection,
		channel:       ch,
		name:          cfg.Name,
		queue:         cfg.Queue,
		dlqQueue:      cfg.DLQQueue,
		exchange:      cfg.Exchange,
		routingKey:    cfg.RoutingKey,
		prefetchCount: cfg.PrefetchCount,
		logger:        cfg.Logger.With(zap.String("consumer", cfg.Name)),
		handler:       cfg.MessageProcessor,
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg ConsumerConfig) error {
	err := ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Failed deliveries dead-letter into the shared DLQ. A queue that
	// predates the DLX arguments cannot be redeclared with them, so fall
	// back to declaring it as-is.
	args := map[string]interface{}{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.DLQQueue,
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, args); err != nil {
		cfg.Logger.Warn("failed to declare queue with DLX, trying without",
			zap.String("queue", cfg.Queue),
			zap.Error(err))
		if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue: %w", err)
		}
	}

	if _, err := ch.QueueDeclare(cfg.DLQQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	return nil
}

// Start begins draining the queue until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		c.name, // consumer tag
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer started",
		zap.String("queue", c.queue),
		zap.Int("prefetch", c.prefetchCount),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("consumer context cancelled, stopping")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("message channel closed")
					return
				}
				c.processDelivery(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *Consumer) processDelivery(ctx context.Context, msg amqp.Delivery) {
	c.logger.Debug("received message",
		zap.String("routing_key", msg.RoutingKey),
		zap.Int("body_size", len(msg.Body)),
	)

	if err := c.handler(ctx, msg.Body); err != nil {
		c.logger.Error("failed to process message",
			zap.Error(err),
			zap.String("routing_key", msg.RoutingKey),
		)

		// NACK without requeue dead-letters the delivery.
		if nackErr := msg.Nack(false, false); nackErr != nil {
			c.logger.Error("failed to NACK message", zap.Error(nackErr))
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		c.logger.Error("failed to ACK message", zap.Error(ackErr))
	}
}

// Close closes the consumer channel.
func (c *Consumer) Close() error {
	if c.channel != nil {
		return c.channel.Close()
	}
	return nil
}
