package driven

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumeOptions controls how a queue is read.
type ConsumeOptions struct {
	Prefetch     int  // how many messages are held without ack
	AutoAck      bool // auto acknowledgement (keep false for telemetry)
	QueueDurable bool // queue survives a broker restart
}

// ITelemetryBroker is the broker surface the ingest pipeline depends on.
type ITelemetryBroker interface {
	// PublishJSON publishes an object as JSON to the given exchange/routing key.
	PublishJSON(ctx context.Context, exchange, routingKey string, msg any) error

	// Consume binds a queue to the telemetry exchange and returns the
	// delivery channel the consumer reads from.
	Consume(ctx context.Context, queueName, bindingKey string, opts ConsumeOptions) (<-chan amqp.Delivery, error)

	// IsAlive reports connection health.
	IsAlive() bool

	// Close shuts down the channel and connection.
	Close() error
}
