package worker

import (
	"context"
	"encoding/json"
	"testing"

	"tyre-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	inserted []models.VectorRow
	byJoin   []models.VectorRow
	updated  map[int64][3]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{updated: map[int64][3]string{}}
}

func (f *fakeStore) InsertVectorRow(_ context.Context, row *models.VectorRow) error {
	f.inserted = append(f.inserted, *row)
	return nil
}

func (f *fakeStore) LoadVectorRowsByJoin(context.Context, string) ([]models.VectorRow, error) {
	return f.byJoin, nil
}

func (f *fakeStore) UpdateVectorRow(_ context.Context, id int64, description, embedding, metadata string) error {
	f.updated[id] = [3]string{description, embedding, metadata}
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float64, error) {
	return []float64{0.1, 0.2}, nil
}

func TestIngestOrderInsertsRow(t *testing.T) {
	store := newFakeStore()
	w := NewOrderIngestWorker(nil, store, fakeEmbedder{})

	event := &models.OrderPlacedEvent{
		BaseEvent:   models.BaseEvent{EventType: models.EventTypeOrderPlaced},
		OrderID:     "ORD0007",
		DealerID:    "D1",
		ProductID:   "P1",
		WarehouseID: "W2",
		Quantity:    5,
		UnitPrice:   250,
		TotalCost:   1250,
		OrderDate:   "2026-08-30T10:00:00Z",
		SalesRepID:  "SR7",
	}
	require.NoError(t, w.ingestOrder(context.Background(), event))

	require.Len(t, store.inserted, 1)
	row := store.inserted[0]
	assert.Equal(t, "orders", row.TableJoin)
	assert.Contains(t, row.Description, "Sales rep SR7 placed an order on behalf of dealer D1")
	assert.Contains(t, row.Description, "5 units of product P1 from warehouse W2")

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(row.Metadata), &meta))
	assert.Equal(t, "ORD0007", meta["order_id"])
	assert.Equal(t, "D1", meta["dealer_id"])
}

func TestIngestInventoryUpdateRewritesMatchingRow(t *testing.T) {
	meta, err := json.Marshal(map[string]interface{}{
		"product_id": "P1", "warehouse_id": "W2", "quantity": 50,
		"product_name": "SpeedoCruze", "category": "radial",
		"warehouse_location": "Chennai", "warehouse_zone": "south",
		"price": 250, "section_width": 100, "aspect_ratio": 35,
		"rim_diameter_inch": 24, "construction_type": "R",
	})
	require.NoError(t, err)

	store := newFakeStore()
	store.byJoin = []models.VectorRow{
		{ID: 3, TableJoin: inventoryTableJoin, Metadata: `{"product_id": "P9", "warehouse_id": "W2"}`},
		{ID: 7, TableJoin: inventoryTableJoin, Metadata: string(meta)},
	}

	w := NewInventoryIngestWorker(nil, store, fakeEmbedder{})
	event := &models.InventoryUpdatedEvent{
		BaseEvent:   models.BaseEvent{EventType: models.EventTypeInventoryUpdated},
		ProductID:   "P1",
		WarehouseID: "W2",
		NewQuantity: 45,
	}
	require.NoError(t, w.ingestInventoryUpdate(context.Background(), event))

	require.Contains(t, store.updated, int64(7))
	updated := store.updated[7]
	assert.Contains(t, updated[0], "Inventory record: 45 units of product 'SpeedoCruze'")

	var newMeta map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(updated[2]), &newMeta))
	assert.Equal(t, float64(45), newMeta["quantity"])
}

func TestIngestInventoryUpdateNoMatchIsSilent(t *testing.T) {
	store := newFakeStore()
	w := NewInventoryIngestWorker(nil, store, fakeEmbedder{})

	event := &models.InventoryUpdatedEvent{ProductID: "P1", WarehouseID: "W1", NewQuantity: 1}
	require.NoError(t, w.ingestInventoryUpdate(context.Background(), event))
	assert.Empty(t, store.updated)
}
