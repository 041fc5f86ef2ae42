package broker

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher emits domain events onto the event stream. Publishing is
// best-effort: failures are logged, the order flow is never blocked on the
// broker. A nil *EventPublisher is valid and publishes nothing, which is how
// deployments without Kafka run.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer, logger: util.GetLogger()}
}

// PublishOrderCreated publishes an OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) {
	if ep == nil {
		return
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:     ep.baseEvent(models.EventTypeOrderCreated),
		OrderID:       order.ID,
		PaymentMethod: order.PaymentMethod,
		Total:         order.Total,
		Items:         order.Items,
	}

	if err := ep.producer.PublishEvent(ctx, eventKey(order.ID), event); err != nil {
		ep.logger.Error("Failed to publish OrderCreated event",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

// PublishPaymentStatusChanged publishes a PaymentStatusChanged event
func (ep *EventPublisher) PublishPaymentStatusChanged(ctx context.Context, order *models.Order) {
	if ep == nil {
		return
	}

	event := &models.PaymentStatusChangedEvent{
		BaseEvent:     ep.baseEvent(models.EventTypePaymentStatusChanged),
		OrderID:       order.ID,
		PaymentID:     order.PaymentID,
		PaymentStatus: order.PaymentStatus,
		OrderStatus:   order.Status,
	}

	if err := ep.producer.PublishEvent(ctx, eventKey(order.ID), event); err != nil {
		ep.logger.Error("Failed to publish PaymentStatusChanged event",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (ep *EventPublisher) baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

func eventKey(orderID string) string {
	return fmt.Sprintf("order-%s", orderID)
}
