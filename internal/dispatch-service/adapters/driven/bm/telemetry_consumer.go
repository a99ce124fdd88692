package bm

import (
	"context"
	"fmt"
	"strings"
	"time"

	ports "courier-dispatch/internal/dispatch-service/core/ports/driven"
	"courier-dispatch/internal/dispatch-service/core/services"
	"courier-dispatch/internal/mylogger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	locationQueue = "courier_location"
	presenceQueue = "courier_presence"

	resubscribeInterval = 5 * time.Second
)

// TelemetryConsumer subscribes to the per-courier topic bindings and hands
// each message to the ingest pipeline. A bad message is logged, acked and
// forgotten; a closed delivery channel is re-subscribed with backoff, so the
// subscriptions only stop when the context does.
type TelemetryConsumer struct {
	ctx         context.Context
	log         mylogger.Logger
	broker      ports.ITelemetryBroker
	ingest      *services.IngestService
	topicPrefix string
	retry       time.Duration
}

func NewTelemetryConsumer(
	ctx context.Context,
	broker ports.ITelemetryBroker,
	ingest *services.IngestService,
	topicPrefix string,
	log mylogger.Logger,
) *TelemetryConsumer {
	return &TelemetryConsumer{
		ctx:         ctx,
		broker:      broker,
		ingest:      ingest,
		topicPrefix: topicPrefix,
		log:         log,
		retry:       resubscribeInterval,
	}
}

func (c *TelemetryConsumer) SubscribeForMessages() {
	go c.subscribe(locationQueue, c.topicPrefix+".*.location", "location", c.ingest.ProcessLocation)
	go c.subscribe(presenceQueue, c.topicPrefix+".*.presence", "presence", c.ingest.ProcessPresence)
}

// subscribe consumes the queue until its delivery channel closes (broker
// connection lost), then re-declares, re-binds and re-consumes after a pause.
func (c *TelemetryConsumer) subscribe(queueName, bindingKey, kind string, handle func(context.Context, string, []byte) error) {
	log := c.log.Action("consume_" + kind).With("queue", queueName)
	for {
		msgCh, err := c.broker.Consume(c.ctx, queueName, bindingKey, ports.ConsumeOptions{
			Prefetch:     32,
			AutoAck:      false,
			QueueDurable: true,
		})
		if err != nil {
			log.Warn("subscribe failed", "reason", err.Error())
		} else {
			c.loop(log, msgCh, handle)
			log.Warn("subscription closed")
		}

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.retry):
		}
	}
}

func (c *TelemetryConsumer) loop(log mylogger.Logger, msgCh <-chan amqp.Delivery, handle func(context.Context, string, []byte) error) {
	for msg := range msgCh {
		courierID, err := c.courierIDFromKey(msg.RoutingKey)
		if err != nil {
			log.Warn("message on unexpected routing key", "routing_key", msg.RoutingKey)
			c.ack(log, msg)
			continue
		}
		if err := c.handleSafely(handle, courierID, msg.Body); err != nil {
			// dropped messages are the pipeline's decision, not a consumer fault
			log.Warn("message dropped", "courier_id", courierID, "reason", err.Error())
		}
		c.ack(log, msg)
	}
}

// handleSafely converts a handler panic into an error so one poison message
// cannot take the subscription down with it.
func (c *TelemetryConsumer) handleSafely(handle func(context.Context, string, []byte) error, courierID string, body []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handle(c.ctx, courierID, body)
}

// courierIDFromKey extracts the courier id from {prefix}.{courierId}.{kind}.
func (c *TelemetryConsumer) courierIDFromKey(routingKey string) (string, error) {
	parts := strings.Split(routingKey, ".")
	if len(parts) != 3 || parts[0] != c.topicPrefix || parts[1] == "" {
		return "", fmt.Errorf("malformed routing key %q", routingKey)
	}
	return parts[1], nil
}

func (c *TelemetryConsumer) ack(log mylogger.Logger, msg amqp.Delivery) {
	if err := msg.Ack(false); err != nil {
		log.Error("failed to acknowledge message", err)
	}
}
