package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tyre-assistant/internal/models"
	"tyre-assistant/internal/util"

	"go.uber.org/zap"
)

// PlaceOrderTx atomically places an order. It validates the product and
// dealer, locks the chosen inventory row, inserts the order with a
// server-computed total cost, deducts stock and credits the rep's monthly
// achievement. Any failure rolls the whole thing back.
//
// warehouseID pins a specific warehouse; when empty the warehouse holding
// the most stock that still covers the quantity is chosen.
func (s *Store) PlaceOrderTx(ctx context.Context, dealerID, productID, warehouseID string, quantity int, salesRepID string) (*models.Order, int, error) {
	logger := util.GetLogger()

	if quantity <= 0 {
		return nil, 0, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var product models.Product
	err = tx.GetContext(ctx, &product, "SELECT * FROM product WHERE product_id = $1", productID)
	if err == sql.ErrNoRows {
		return nil, 0, fmt.Errorf("product not found: %s", productID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load product: %w", err)
	}

	var dealer models.Dealer
	err = tx.GetContext(ctx, &dealer, "SELECT * FROM dealer WHERE dealer_id = $1", dealerID)
	if err == sql.ErrNoRows {
		return nil, 0, fmt.Errorf("dealer not found: %s", dealerID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load dealer: %w", err)
	}

	var inv models.Inventory
	if warehouseID != "" {
		err = tx.GetContext(ctx, &inv,
			"SELECT product_id, warehouse_id, quantity FROM inventory WHERE product_id = $1 AND warehouse_id = $2 FOR UPDATE",
			productID, warehouseID)
		if err == sql.ErrNoRows {
			return nil, 0, fmt.Errorf("product %s is not stocked at warehouse %s", productID, warehouseID)
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to lock inventory: %w", err)
		}
		if inv.Quantity < quantity {
			return nil, 0, fmt.Errorf("insufficient stock at warehouse %s: have %d, need %d", warehouseID, inv.Quantity, quantity)
		}
	} else {
		err = tx.GetContext(ctx, &inv,
			"SELECT product_id, warehouse_id, quantity FROM inventory WHERE product_id = $1 AND quantity >= $2 ORDER BY quantity DESC LIMIT 1 FOR UPDATE",
			productID, quantity)
		if err == sql.ErrNoRows {
			return nil, 0, fmt.Errorf("no warehouse has %d units of %s in stock", quantity, productID)
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to lock inventory: %w", err)
		}
	}

	// Ids outside the ORD#### format must not feed the sequence.
	var lastID sql.NullString
	err = tx.GetContext(ctx, &lastID, "SELECT MAX(order_id) FROM orders WHERE order_id ~ '^ORD[0-9]{4}'")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan order ids: %w", err)
	}
	orderID := nextOrderID(lastID.String)

	order := &models.Order{
		OrderID:     orderID,
		DealerID:    dealerID,
		ProductID:   productID,
		WarehouseID: inv.WarehouseID,
		Quantity:    quantity,
		UnitPrice:   product.Price,
		TotalCost:   product.Price * float64(quantity),
		OrderDate:   time.Now(),
		SalesRepID:  salesRepID,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (order_id, dealer_id, product_id, warehouse_id, quantity, unit_price, total_cost, order_date, sales_rep_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		order.OrderID, order.DealerID, order.ProductID, order.WarehouseID,
		order.Quantity, order.UnitPrice, order.TotalCost, order.OrderDate, order.SalesRepID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to insert order: %w", err)
	}

	// Guard against the quantity having dropped between lock and update.
	res, err := tx.ExecContext(ctx,
		"UPDATE inventory SET quantity = quantity - $1 WHERE product_id = $2 AND warehouse_id = $3 AND quantity >= $1",
		quantity, productID, inv.WarehouseID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to deduct inventory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to check inventory update: %w", err)
	}
	if affected == 0 {
		return nil, 0, fmt.Errorf("insufficient stock for product %s at warehouse %s", productID, inv.WarehouseID)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE sales_reps SET monthly_sales_achieved = COALESCE(monthly_sales_achieved, 0) + $1 WHERE sales_rep_id = $2",
		order.TotalCost, salesRepID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to update sales achievement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit order: %w", err)
	}

	logger.Info("Order placed",
		zap.String("order_id", order.OrderID),
		zap.String("dealer_id", dealerID),
		zap.String("product_id", productID),
		zap.String("warehouse_id", inv.WarehouseID),
		zap.Int("quantity", quantity),
		zap.Float64("total_cost", order.TotalCost),
	)

	return order, inv.Quantity - quantity, nil
}

// nextOrderID returns the successor of the highest existing order id in
// the ORD#### sequence. Gaps from failed transactions are never reused
// below the maximum.
func nextOrderID(last string) string {
	n := 0
	if strings.HasPrefix(last, "ORD") {
		if v, err := strconv.Atoi(last[3:]); err == nil {
			n = v
		}
	}
	return fmt.Sprintf("ORD%04d", n+1)
}

// GetStockAvailability reports where a product is stocked and whether any
// single warehouse can cover the quantity. Read-only; placement re-checks
// under its own lock.
func (s *Store) GetStockAvailability(ctx context.Context, productID string, quantity int) (*models.StockAvailability, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM product WHERE product_id = $1", productID)
	if err == sql.ErrNoRows {
		return &models.StockAvailability{
			Available:        false,
			RequiredQuantity: quantity,
			Message:          fmt.Sprintf("Product %s not found.", productID),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	var locations []models.StockLocation
	err = s.db.SelectContext(ctx, &locations,
		`SELECT w.warehouse_id, w.location, w.zone, i.quantity
		 FROM inventory i
		 JOIN warehouse w ON i.warehouse_id = w.warehouse_id
		 WHERE i.product_id = $1 AND i.quantity > 0
		 ORDER BY i.quantity DESC`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock locations: %w", err)
	}

	total := 0
	available := false
	for i := range locations {
		total += locations[i].Quantity
		if locations[i].Quantity >= quantity {
			locations[i].Sufficient = true
			available = true
		}
	}

	out := &models.StockAvailability{
		Available:        available,
		ProductName:      product.ProductName,
		Price:            product.Price,
		TotalStock:       total,
		RequiredQuantity: quantity,
		Warehouses:       locations,
	}
	if !available {
		out.Message = fmt.Sprintf("No single warehouse holds %d units of %s.", quantity, product.ProductName)
	}
	return out, nil
}
