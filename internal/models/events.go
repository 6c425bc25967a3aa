package models

import "time"

// Event types carried on the change-notification topics.
const (
	EventTypeOrderPlaced      = "OrderPlaced"
	EventTypeInventoryUpdated = "InventoryUpdated"
)

// BaseEvent is embedded in every published event.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent is published after a successful order transaction.
// The ingestion worker turns it into a vector-store row.
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     string  `json:"order_id"`
	DealerID    string  `json:"dealer_id"`
	ProductID   string  `json:"product_id"`
	WarehouseID string  `json:"warehouse_id"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalCost   float64 `json:"total_cost"`
	OrderDate   string  `json:"order_date"`
	SalesRepID  string  `json:"sales_rep_id"`
}

// InventoryUpdatedEvent is published after inventory deduction so the
// matching vector-store row can be re-embedded with the new quantity.
type InventoryUpdatedEvent struct {
	BaseEvent
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
	NewQuantity int    `json:"new_quantity"`
}
