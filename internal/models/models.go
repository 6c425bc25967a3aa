package models

import "time"

// Role values stored in users.role.
const (
	RoleDealer   = "dealer"
	RoleSalesRep = "sales_rep"
	RoleAdmin    = "admin"
)

// Session is the authenticated identity for one request. It is built once
// per request and passed explicitly through every call; nothing keeps it
// in process-wide state.
type Session struct {
	UserID       int64   `json:"user_id"`
	Username     string  `json:"username"`
	Role         string  `json:"role"`
	DealerID     *string `json:"dealer_id,omitempty"`
	DealerName   *string `json:"dealer_name,omitempty"`
	SalesRepID   *string `json:"sales_rep_id,omitempty"`
	SalesRepName *string `json:"sales_rep_name,omitempty"`
	SessionID    string  `json:"session_id"`
}

// IsDealer reports whether the session belongs to a dealer account.
func (s *Session) IsDealer() bool { return s.Role == RoleDealer }

// IsSalesRep reports whether the session belongs to a sales representative.
func (s *Session) IsSalesRep() bool { return s.Role == RoleSalesRep }

// IsAdmin reports whether the session has unrestricted access.
func (s *Session) IsAdmin() bool { return s.Role == RoleAdmin }

// Dealer returns the session dealer id or "".
func (s *Session) Dealer() string {
	if s.DealerID == nil {
		return ""
	}
	return *s.DealerID
}

// SalesRep returns the session sales rep id or "".
func (s *Session) SalesRep() string {
	if s.SalesRepID == nil {
		return ""
	}
	return *s.SalesRepID
}

// Product is a tyre SKU. Read-mostly reference data.
type Product struct {
	ProductID        string  `db:"product_id" json:"product_id"`
	ProductName      string  `db:"product_name" json:"product_name"`
	Category         string  `db:"category" json:"category"`
	Price            float64 `db:"price" json:"price"`
	SectionWidth     int     `db:"section_width" json:"section_width"`
	AspectRatio      int     `db:"aspect_ratio" json:"aspect_ratio"`
	ConstructionType string  `db:"construction_type" json:"construction_type"`
	RimDiameterInch  int     `db:"rim_diameter_inch" json:"rim_diameter_inch"`
}

// Dealer belongs to exactly one sales rep.
type Dealer struct {
	DealerID   string `db:"dealer_id" json:"dealer_id"`
	Name       string `db:"name" json:"name"`
	Zone       string `db:"zone" json:"zone"`
	SalesRepID string `db:"sales_rep_id" json:"sales_rep_id"`
}

// SalesRep carries the monthly quota counters. MonthlySalesAchieved is
// mutated only by successful order placement.
type SalesRep struct {
	SalesRepID           string  `db:"sales_rep_id" json:"sales_rep_id"`
	Name                 string  `db:"name" json:"name"`
	Zone                 string  `db:"zone" json:"zone"`
	MonthlySalesTarget   float64 `db:"monthly_sales_target" json:"monthly_sales_target"`
	MonthlySalesAchieved float64 `db:"monthly_sales_achieved" json:"monthly_sales_achieved"`
}

// Warehouse is a stocking location.
type Warehouse struct {
	WarehouseID string `db:"warehouse_id" json:"warehouse_id"`
	Location    string `db:"location" json:"location"`
	Zone        string `db:"zone" json:"zone"`
}

// Inventory relates (product, warehouse) to a non-negative quantity.
type Inventory struct {
	ProductID   string `db:"product_id" json:"product_id"`
	WarehouseID string `db:"warehouse_id" json:"warehouse_id"`
	Quantity    int    `db:"quantity" json:"quantity"`
}

// Order is immutable once created. TotalCost is always recomputed
// server-side from unit price and quantity.
type Order struct {
	OrderID     string    `db:"order_id" json:"order_id"`
	DealerID    string    `db:"dealer_id" json:"dealer_id"`
	ProductID   string    `db:"product_id" json:"product_id"`
	WarehouseID string    `db:"warehouse_id" json:"warehouse_id"`
	Quantity    int       `db:"quantity" json:"quantity"`
	UnitPrice   float64   `db:"unit_price" json:"unit_price"`
	TotalCost   float64   `db:"total_cost" json:"total_cost"`
	OrderDate   time.Time `db:"order_date" json:"order_date"`
	SalesRepID  string    `db:"sales_rep_id" json:"sales_rep_id"`
}

// OrderRequest statuses. Transitions are one-directional: pending is the
// only non-terminal state.
const (
	RequestStatusPending   = "pending"
	RequestStatusAccepted  = "accepted"
	RequestStatusPlaced    = "placed"
	RequestStatusDismissed = "dismissed"
	RequestStatusCancelled = "cancelled"
)

// OrderRequest is a dealer-initiated precursor to an Order, confirmed by
// the assigned sales rep.
type OrderRequest struct {
	RequestID  int64     `db:"request_id" json:"request_id"`
	DealerID   string    `db:"dealer_id" json:"dealer_id"`
	SalesRepID string    `db:"sales_rep_id" json:"sales_rep_id"`
	ProductID  string    `db:"product_id" json:"product_id"`
	Quantity   int       `db:"quantity" json:"quantity"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Claim is a dealer-filed issue record.
type Claim struct {
	ClaimID    int64     `db:"claim_id" json:"claim_id"`
	DealerID   string    `db:"dealer_id" json:"dealer_id"`
	SalesRepID string    `db:"sales_rep_id" json:"sales_rep_id"`
	ProductID  string    `db:"product_id" json:"product_id"`
	Status     string    `db:"status" json:"status"`
	Amount     float64   `db:"amount" json:"amount"`
	Reason     string    `db:"reason" json:"reason"`
	ClaimDate  time.Time `db:"claim_date" json:"claim_date"`
}

// VectorRow is one denormalized retrieval record. Metadata and the
// embedding are stored as serialized JSON text and parsed before use.
// At most one row exists per (table_join, identifying-key tuple).
type VectorRow struct {
	ID          int64  `db:"id" json:"id"`
	TableJoin   string `db:"table_join" json:"table_join"`
	Description string `db:"description" json:"description"`
	Embedding   string `db:"embedding" json:"-"`
	Metadata    string `db:"metadata" json:"metadata"`
}

// ConversationLogEntry is append-only, written after each answered query.
type ConversationLogEntry struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	DealerID       *string   `db:"dealer_id" json:"dealer_id,omitempty"`
	SalesRepID     *string   `db:"sales_rep_id" json:"sales_rep_id,omitempty"`
	UserQuery      string    `db:"user_query" json:"user_query"`
	AIResponse     string    `db:"ai_response" json:"ai_response"`
	SessionID      string    `db:"session_id" json:"session_id"`
	QueryTimestamp time.Time `db:"query_timestamp" json:"query_timestamp"`
}

// Exchange is one prior user/assistant turn.
type Exchange struct {
	UserQuery  string `db:"user_query" json:"user_query"`
	AIResponse string `db:"ai_response" json:"ai_response"`
}

// SalesProgress summarizes a rep's quota position.
type SalesProgress struct {
	Target   float64 `json:"target"`
	Achieved float64 `json:"achieved"`
	Progress float64 `json:"progress"`
}

// StockLocation is one warehouse's stock position for a product.
type StockLocation struct {
	WarehouseID string `db:"warehouse_id" json:"warehouse_id"`
	Location    string `db:"location" json:"location"`
	Zone        string `db:"zone" json:"zone"`
	Quantity    int    `db:"quantity" json:"quantity"`
	Sufficient  bool   `db:"-" json:"sufficient"`
}

// StockAvailability aggregates stock across warehouses. Informational
// only; the placement path re-checks under its own transaction.
type StockAvailability struct {
	Available        bool            `json:"available"`
	ProductName      string          `json:"product_name,omitempty"`
	Price            float64         `json:"price,omitempty"`
	TotalStock       int             `json:"total_stock"`
	RequiredQuantity int             `json:"required_quantity"`
	Warehouses       []StockLocation `json:"warehouses,omitempty"`
	Message          string          `json:"message,omitempty"`
}
