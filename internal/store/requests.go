package store

import (
	"context"
	"database/sql"
	"fmt"

	"tyre-assistant/internal/models"
)

// CreateOrderRequest inserts a pending dealer order request routed to the
// dealer's assigned sales rep.
func (s *Store) CreateOrderRequest(ctx context.Context, dealerID, salesRepID, productID string, quantity int) (int64, error) {
	var requestID int64
	err := s.db.GetContext(ctx, &requestID,
		`INSERT INTO order_requests (dealer_id, sales_rep_id, product_id, quantity, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 RETURNING request_id`,
		dealerID, salesRepID, productID, quantity, models.RequestStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to create order request: %w", err)
	}
	return requestID, nil
}

// LatestPendingRequestForRep returns the most recent pending request
// assigned to a rep, or nil when there is none.
func (s *Store) LatestPendingRequestForRep(ctx context.Context, salesRepID string) (*models.OrderRequest, error) {
	var req models.OrderRequest
	err := s.db.GetContext(ctx, &req,
		`SELECT request_id, dealer_id, sales_rep_id, product_id, quantity, status, created_at
		 FROM order_requests
		 WHERE sales_rep_id = $1 AND status = $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		salesRepID, models.RequestStatusPending)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending request: %w", err)
	}
	return &req, nil
}

// PendingRequestsForRep lists a rep's open requests with dealer and
// product names joined in for display.
func (s *Store) PendingRequestsForRep(ctx context.Context, salesRepID string) ([]map[string]interface{}, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT r.request_id, r.dealer_id, d.name AS dealer_name, r.product_id,
		        p.product_name, r.quantity, r.status, r.created_at
		 FROM order_requests r
		 JOIN dealer d ON r.dealer_id = d.dealer_id
		 JOIN product p ON r.product_id = p.product_id
		 WHERE r.sales_rep_id = $1 AND r.status = $2
		 ORDER BY r.created_at DESC`,
		salesRepID, models.RequestStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan request row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpdateRequestStatus moves a request out of pending. Only pending rows
// transition; anything else is already terminal.
func (s *Store) UpdateRequestStatus(ctx context.Context, requestID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE order_requests SET status = $1 WHERE request_id = $2 AND status = $3",
		status, requestID, models.RequestStatusPending)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check request update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("request %d is not pending", requestID)
	}
	return nil
}
