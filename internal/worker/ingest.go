// Package worker runs the background ingestion pipeline that keeps the
// retrieval corpus in sync with order placement and inventory changes.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tyre-assistant/internal/broker"
	"tyre-assistant/internal/llm"
	"tyre-assistant/internal/models"
	"tyre-assistant/internal/util"

	"github.com/segmentio/kafka-go"
)

const inventoryTableJoin = "inventory+product+warehouse"

// VectorWriter is the store surface the workers need.
type VectorWriter interface {
	InsertVectorRow(ctx context.Context, row *models.VectorRow) error
	LoadVectorRowsByJoin(ctx context.Context, tableJoin string) ([]models.VectorRow, error)
	UpdateVectorRow(ctx context.Context, id int64, description, embedding, metadata string) error
}

// Embedder produces embeddings for new descriptions.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// embedWithRetry backs off exponentially on provider rate limits. Other
// errors fail immediately.
func embedWithRetry(ctx context.Context, embedder Embedder, text string) ([]float64, error) {
	delay := 3 * time.Second
	for attempt := 0; attempt < 5; attempt++ {
		embedding, err := embedder.Embed(ctx, text)
		if err == nil {
			return embedding, nil
		}
		if !errors.Is(err, llm.ErrRateLimited) {
			return nil, err
		}
		wait := delay * time.Duration(1<<attempt)
		log.Printf("Embedding rate limit hit, retrying in %s...", wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("embedding retries exhausted")
}

// OrderIngestWorker turns OrderPlaced events into retrieval rows.
type OrderIngestWorker struct {
	consumer *broker.Consumer
	store    VectorWriter
	embedder Embedder
}

// NewOrderIngestWorker creates the order ingestion worker.
func NewOrderIngestWorker(consumer *broker.Consumer, store VectorWriter, embedder Embedder) *OrderIngestWorker {
	return &OrderIngestWorker{consumer: consumer, store: store, embedder: embedder}
}

// Start starts the worker
func (w *OrderIngestWorker) Start(ctx context.Context) error {
	log.Println("Starting order ingestion worker...")

	return w.consumer.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		var event models.OrderPlacedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("Failed to unmarshal OrderPlaced event: %v", err)
			return err
		}
		if event.EventType != models.EventTypeOrderPlaced {
			return nil
		}
		return w.ingestOrder(ctx, &event)
	})
}

// Stop stops the worker
func (w *OrderIngestWorker) Stop() error {
	log.Println("Stopping order ingestion worker...")
	return w.consumer.Close()
}

func (w *OrderIngestWorker) ingestOrder(ctx context.Context, event *models.OrderPlacedEvent) error {
	description := orderDescription(event)

	embedding, err := embedWithRetry(ctx, w.embedder, description)
	if err != nil {
		return fmt.Errorf("failed to embed order %s: %w", event.OrderID, err)
	}
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	metadata, err := json.Marshal(map[string]interface{}{
		"order_id":     event.OrderID,
		"dealer_id":    event.DealerID,
		"product_id":   event.ProductID,
		"warehouse_id": event.WarehouseID,
		"quantity":     event.Quantity,
		"unit_price":   event.UnitPrice,
		"total_cost":   event.TotalCost,
		"order_date":   event.OrderDate,
		"sales_rep_id": event.SalesRepID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	row := &models.VectorRow{
		TableJoin:   "orders",
		Description: description,
		Embedding:   string(embeddingJSON),
		Metadata:    string(metadata),
	}
	if err := w.store.InsertVectorRow(ctx, row); err != nil {
		return err
	}

	util.VectorRowsIngestedTotal.WithLabelValues("orders").Inc()
	log.Printf("Order %s embedded and stored", event.OrderID)
	return nil
}

func orderDescription(event *models.OrderPlacedEvent) string {
	return fmt.Sprintf(
		"Sales rep %s placed an order on behalf of dealer %s for %d units of product %s from warehouse %s. "+
			"Each unit is priced at ₹%v, totaling ₹%v. The order was placed on %s.",
		event.SalesRepID, event.DealerID, event.Quantity, event.ProductID, event.WarehouseID,
		event.UnitPrice, event.TotalCost, event.OrderDate)
}

// InventoryIngestWorker re-embeds the matching inventory row after a
// quantity change.
type InventoryIngestWorker struct {
	consumer *broker.Consumer
	store    VectorWriter
	embedder Embedder
}

// NewInventoryIngestWorker creates the inventory ingestion worker.
func NewInventoryIngestWorker(consumer *broker.Consumer, store VectorWriter, embedder Embedder) *InventoryIngestWorker {
	return &InventoryIngestWorker{consumer: consumer, store: store, embedder: embedder}
}

// Start starts the worker
func (w *InventoryIngestWorker) Start(ctx context.Context) error {
	log.Println("Starting inventory ingestion worker...")

	return w.consumer.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		var event models.InventoryUpdatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("Failed to unmarshal InventoryUpdated event: %v", err)
			return err
		}
		if event.EventType != models.EventTypeInventoryUpdated {
			return nil
		}
		return w.ingestInventoryUpdate(ctx, &event)
	})
}

// Stop stops the worker
func (w *InventoryIngestWorker) Stop() error {
	log.Println("Stopping inventory ingestion worker...")
	return w.consumer.Close()
}

func (w *InventoryIngestWorker) ingestInventoryUpdate(ctx context.Context, event *models.InventoryUpdatedEvent) error {
	rows, err := w.store.LoadVectorRowsByJoin(ctx, inventoryTableJoin)
	if err != nil {
		return err
	}

	var found *models.VectorRow
	var meta map[string]interface{}
	for i := range rows {
		m := map[string]interface{}{}
		if err := json.Unmarshal([]byte(rows[i].Metadata), &m); err != nil {
			continue
		}
		if matchKey(m, "product_id", event.ProductID) && matchKey(m, "warehouse_id", event.WarehouseID) {
			found = &rows[i]
			meta = m
			break
		}
	}
	if found == nil {
		log.Printf("No vector row found for product %s in warehouse %s", event.ProductID, event.WarehouseID)
		return nil
	}

	meta["quantity"] = event.NewQuantity
	description := inventoryDescription(meta)

	embedding, err := embedWithRetry(ctx, w.embedder, description)
	if err != nil {
		return fmt.Errorf("failed to embed inventory update: %w", err)
	}
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	metadataJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := w.store.UpdateVectorRow(ctx, found.ID, description, string(embeddingJSON), string(metadataJSON)); err != nil {
		return err
	}

	util.VectorRowsIngestedTotal.WithLabelValues(inventoryTableJoin).Inc()
	log.Printf("Vector row updated for product %s in warehouse %s", event.ProductID, event.WarehouseID)
	return nil
}

func matchKey(meta map[string]interface{}, key, want string) bool {
	v, ok := meta[key]
	if !ok {
		return false
	}
	return strings.TrimSpace(fmt.Sprint(v)) == strings.TrimSpace(want)
}

func inventoryDescription(meta map[string]interface{}) string {
	return fmt.Sprintf(
		"Inventory record: %v units of product '%v' (ID: %v) in category '%v' are stored in warehouse '%v' (ID: %v) "+
			"located in zone '%v'. Product specs include: ₹%v price, section width %vmm, aspect ratio %v, "+
			"rim diameter %v inches, and construction type %v.",
		meta["quantity"], meta["product_name"], meta["product_id"], meta["category"],
		meta["warehouse_location"], meta["warehouse_id"], meta["warehouse_zone"],
		meta["price"], meta["section_width"], meta["aspect_ratio"],
		meta["rim_diameter_inch"], meta["construction_type"])
}
