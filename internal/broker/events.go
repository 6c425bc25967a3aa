package broker

import (
	"context"
	"fmt"

	"tyre-assistant/internal/models"
)

// EventPublisher handles publishing domain events. Order events and
// inventory events ride separate topics so the ingestion workers can
// scale independently.
type EventPublisher struct {
	orders    *Producer
	inventory *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(orders, inventory *Producer) *EventPublisher {
	return &EventPublisher{orders: orders, inventory: inventory}
}

// PublishOrderPlaced publishes an OrderPlaced event keyed by order id.
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.orders.PublishEvent(ctx, key, event)
}

// PublishInventoryUpdated publishes an InventoryUpdated event keyed by
// the (product, warehouse) pair so updates for one slot stay ordered.
func (ep *EventPublisher) PublishInventoryUpdated(ctx context.Context, event *models.InventoryUpdatedEvent) error {
	key := fmt.Sprintf("inventory-%s-%s", event.ProductID, event.WarehouseID)
	return ep.inventory.PublishEvent(ctx, key, event)
}
