package invalidation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// MessagePublisher is the subset of the RabbitMQ client used to broadcast signals.
type MessagePublisher interface {
	PublishJSON(ctx context.Context, routingKey string, body []byte) error
}

// AMQPPublisher broadcasts signals over RabbitMQ so other instances can drop their caches.
type AMQPPublisher struct {
	client MessagePublisher
}

// NewAMQPPublisher wraps client.
func NewAMQPPublisher(client MessagePublisher) *AMQPPublisher {
	return &AMQPPublisher{client: client}
}

// Publish sends sig as JSON, keyed by its path.
func (p *AMQPPublisher) Publish(ctx context.Context, sig Signal) error {
	body, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation: %w", err)
	}
	return p.client.PublishJSON(ctx, sig.Path, body)
}

// DeliveryHandler decodes AMQP deliveries and forwards them to sink.
func DeliveryHandler(sink Publisher) func(amqp.Delivery) error {
	return func(msg amqp.Delivery) error {
		var sig Signal
		if err := json.Unmarshal(msg.Body, &sig); err != nil {
			return fmt.Errorf("failed to decode invalidation: %w", err)
		}
		return sink.Publish(context.Background(), sig)
	}
}
