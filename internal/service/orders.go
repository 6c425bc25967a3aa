package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tyre-assistant/internal/llm"
	"tyre-assistant/internal/models"
	"tyre-assistant/internal/policy"
	"tyre-assistant/internal/redisclient"
	"tyre-assistant/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the transactional surface the order engine needs.
type OrderStore interface {
	PlaceOrderTx(ctx context.Context, dealerID, productID, warehouseID string, quantity int, salesRepID string) (*models.Order, int, error)
	CreateOrderRequest(ctx context.Context, dealerID, salesRepID, productID string, quantity int) (int64, error)
	LatestPendingRequestForRep(ctx context.Context, salesRepID string) (*models.OrderRequest, error)
	UpdateRequestStatus(ctx context.Context, requestID int64, status string) error
	ResolveDealerID(ctx context.Context, name string) (string, error)
	ResolveProductID(ctx context.Context, name string) (string, error)
	ResolveWarehouseID(ctx context.Context, location string) (string, error)
	GetStockAvailability(ctx context.Context, productID string, quantity int) (*models.StockAvailability, error)
}

// ProposalStore holds per-session pending proposals.
type ProposalStore interface {
	SaveProposal(ctx context.Context, sessionID string, p *redisclient.Proposal) error
	GetProposal(ctx context.Context, sessionID string) (*redisclient.Proposal, error)
	ClearProposal(ctx context.Context, sessionID string) error
}

// EventPublisher emits change notifications after successful placement.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishInventoryUpdated(ctx context.Context, event *models.InventoryUpdatedEvent) error
}

// OrderEngine handles order intent: extraction, the two-step rep
// confirmation, dealer requests, and placement itself.
type OrderEngine struct {
	chat      Completer
	store     OrderStore
	proposals ProposalStore
	publisher EventPublisher
}

// NewOrderEngine creates an order engine.
func NewOrderEngine(chat Completer, store OrderStore, proposals ProposalStore, publisher EventPublisher) *OrderEngine {
	return &OrderEngine{chat: chat, store: store, proposals: proposals, publisher: publisher}
}

var confirmationPhrases = []string{"yes", "confirm", "place order", "yep", "sure", "okay", "ok"}
var negativePhrases = []string{"no", "cancel", "don't", "do not", "nah"}

// IsConfirmation reports whether the turn reads as a yes.
func IsConfirmation(query string) bool {
	q := strings.ToLower(query)
	for _, phrase := range confirmationPhrases {
		if strings.Contains(q, phrase) {
			return true
		}
	}
	return false
}

// IsCancellation reports whether the turn reads as a no.
func IsCancellation(query string) bool {
	q := strings.ToLower(query)
	for _, phrase := range negativePhrases {
		if strings.Contains(q, phrase) {
			return true
		}
	}
	return false
}

// OrderDetails is the structured extraction of an order-flavored turn.
type OrderDetails struct {
	Intent      string
	ProductID   string
	ProductName string
	DealerID    string
	DealerName  string
	WarehouseID string
	Quantity    int
}

// ExtractOrderDetails asks the provider to pull order fields from the
// turn. Extraction failures collapse to the unknown intent.
func (e *OrderEngine) ExtractOrderDetails(ctx context.Context, query string) *OrderDetails {
	system := `You are an AI assistant extracting structured order information from user input.
Always return a valid JSON object with the following keys:

- intent: "order" or "info"
- product_id: (exact SKU if given)
- product_name: (if no product_id, extract name like "SpeedoCruze")
- dealer_id: (numeric ID if given)
- dealer_name: (if no dealer_id, extract name like "Pooja Singh")
- quantity: number of units (if mentioned)
- warehouse_id: optional (if present)

Rules:
- Use product_name and dealer_name as fallback when product_id or dealer_id are missing.
- If the user is only asking about availability or product info, use intent: "info".
- Do not include extra text outside the JSON.

Examples:

"Order 50 units of 100/35R24 for dealer 123" ->
{"intent": "order", "dealer_id": 123, "product_id": "100/35R24", "quantity": 50}

"Check if 100/35R24 is in stock" ->
{"intent": "info", "product_id": "100/35R24"}

"Place 3 SpeedoCruze for Pooja Singh" ->
{"intent": "order", "product_name": "SpeedoCruze", "dealer_name": "Pooja Singh", "quantity": 3}

"Need 20 SpeedoCruze tires" ->
{"intent": "order", "product_name": "SpeedoCruze", "quantity": 20}`

	content, err := e.chat.Complete(ctx, llm.ChatRequest{
		System:      system,
		User:        query,
		Temperature: 0,
		MaxTokens:   200,
		Operation:   "order_extraction",
	})
	if err != nil {
		return &OrderDetails{Intent: "unknown"}
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return &OrderDetails{Intent: "unknown"}
	}

	details := &OrderDetails{Intent: "unknown"}
	if v, ok := raw["intent"].(string); ok {
		details.Intent = v
	}
	details.ProductID = stringField(raw, "product_id")
	details.ProductName = stringField(raw, "product_name")
	details.DealerID = stringField(raw, "dealer_id")
	details.DealerName = stringField(raw, "dealer_name")
	details.WarehouseID = stringField(raw, "warehouse_id")
	if q, ok := raw["quantity"].(float64); ok {
		details.Quantity = int(q)
	}
	return details
}

// stringField renders numeric or string JSON values as strings; dealer
// ids in particular come back either way.
func stringField(raw map[string]interface{}, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprint(v)
	}
}

// resolveIdentifiers fills missing ids from names. Warehouse values that
// do not look like ids are treated as locations.
func (e *OrderEngine) resolveIdentifiers(ctx context.Context, details *OrderDetails) {
	if details.DealerID == "" && details.DealerName != "" {
		if id, err := e.store.ResolveDealerID(ctx, details.DealerName); err == nil && id != "" {
			details.DealerID = id
		}
	}
	if details.ProductID == "" && details.ProductName != "" {
		if id, err := e.store.ResolveProductID(ctx, details.ProductName); err == nil && id != "" {
			details.ProductID = id
		}
	}
	if details.WarehouseID != "" && !strings.HasPrefix(details.WarehouseID, "W") {
		if id, err := e.store.ResolveWarehouseID(ctx, details.WarehouseID); err == nil && id != "" {
			details.WarehouseID = id
		}
	}
}

// HandleOrderIntent routes an extracted order by role. Dealers get an
// order request; sales reps get a proposal awaiting confirmation.
func (e *OrderEngine) HandleOrderIntent(ctx context.Context, session *models.Session, details *OrderDetails) string {
	e.resolveIdentifiers(ctx, details)

	// Dealers only ever order for themselves.
	if session.IsDealer() {
		details.DealerID = session.Dealer()
	}

	if details.ProductID == "" || details.Quantity <= 0 || details.DealerID == "" {
		return "❌ Missing order details. Please specify dealer, product, and quantity."
	}

	switch {
	case policy.CanRequestOrder(session):
		if session.SalesRep() == "" {
			return "❌ No sales representative is linked to your account, so your request cannot be routed. Please contact support."
		}
		requestID, err := e.store.CreateOrderRequest(ctx, details.DealerID, session.SalesRep(), details.ProductID, details.Quantity)
		if err != nil {
			util.GetLogger().Error("Failed to create order request", zap.Error(err))
			return "❌ Could not create your order request. Please try again."
		}
		util.OrderRequestsCreatedTotal.Inc()
		return fmt.Sprintf("📨 Your order request #%d for %d units of %s has been sent to your sales representative for approval.",
			requestID, details.Quantity, details.ProductID)

	case policy.CanPlaceOrder(session):
		proposal := &redisclient.Proposal{
			DealerID:    details.DealerID,
			ProductID:   details.ProductID,
			WarehouseID: details.WarehouseID,
			Quantity:    details.Quantity,
			CreatedAt:   time.Now(),
		}
		if err := e.proposals.SaveProposal(ctx, session.SessionID, proposal); err != nil {
			util.GetLogger().Error("Failed to save proposal", zap.Error(err))
			return "❌ Could not prepare your order. Please try again."
		}
		util.OrderProposalsTotal.WithLabelValues("created").Inc()
		return fmt.Sprintf("🛒 Ready to place an order for dealer %s: %d units of %s. Reply 'yes' to confirm or 'no' to cancel.",
			details.DealerID, details.Quantity, details.ProductID)

	default:
		return "❌ Your role cannot place or request orders."
	}
}

// HandleConfirmation executes the session's pending proposal, falling
// back to the rep's latest pending dealer request. The second return is
// false when there was nothing to confirm.
func (e *OrderEngine) HandleConfirmation(ctx context.Context, session *models.Session) (string, bool) {
	if !policy.CanPlaceOrder(session) {
		return "", false
	}

	proposal, err := e.proposals.GetProposal(ctx, session.SessionID)
	if err != nil {
		util.GetLogger().Warn("Failed to load proposal", zap.Error(err))
	}
	if proposal != nil {
		msg := e.placeAndReport(ctx, session, proposal.DealerID, proposal.ProductID, proposal.WarehouseID, proposal.Quantity)
		_ = e.proposals.ClearProposal(ctx, session.SessionID)
		util.OrderProposalsTotal.WithLabelValues("confirmed").Inc()
		return msg, true
	}

	request, err := e.store.LatestPendingRequestForRep(ctx, session.SalesRep())
	if err != nil {
		util.GetLogger().Warn("Failed to load pending request", zap.Error(err))
		return "", false
	}
	if request == nil {
		return "No pending order found to confirm.", true
	}

	msg := e.placeAndReport(ctx, session, request.DealerID, request.ProductID, "", request.Quantity)
	if err := e.store.UpdateRequestStatus(ctx, request.RequestID, models.RequestStatusPlaced); err != nil {
		util.GetLogger().Warn("Failed to mark request placed", zap.Int64("request_id", request.RequestID), zap.Error(err))
	}
	return msg, true
}

// HandleCancellation drops the session's pending proposal, if any.
func (e *OrderEngine) HandleCancellation(ctx context.Context, session *models.Session) (string, bool) {
	if !policy.CanPlaceOrder(session) {
		return "", false
	}
	proposal, err := e.proposals.GetProposal(ctx, session.SessionID)
	if err != nil || proposal == nil {
		return "", false
	}
	_ = e.proposals.ClearProposal(ctx, session.SessionID)
	util.OrderProposalsTotal.WithLabelValues("cancelled").Inc()
	return "❌ Order cancelled.", true
}

// ExpireProposal clears a stale proposal after a non-matching turn and
// returns a notice for the answer, or "" when there was none.
func (e *OrderEngine) ExpireProposal(ctx context.Context, session *models.Session) string {
	if session.SessionID == "" {
		return ""
	}
	proposal, err := e.proposals.GetProposal(ctx, session.SessionID)
	if err != nil || proposal == nil {
		return ""
	}
	_ = e.proposals.ClearProposal(ctx, session.SessionID)
	util.OrderProposalsTotal.WithLabelValues("expired").Inc()
	return fmt.Sprintf("\n\n(Your pending order of %d units of %s for dealer %s was discarded because you asked about something else.)",
		proposal.Quantity, proposal.ProductID, proposal.DealerID)
}

// placeAndReport runs the transaction and publishes change events.
func (e *OrderEngine) placeAndReport(ctx context.Context, session *models.Session, dealerID, productID, warehouseID string, quantity int) string {
	order, remaining, err := e.store.PlaceOrderTx(ctx, dealerID, productID, warehouseID, quantity, session.SalesRep())
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("transaction").Inc()
		return fmt.Sprintf("❌ Failed to place the order: %v", err)
	}
	util.OrdersPlacedTotal.Inc()

	if e.publisher != nil {
		now := time.Now()
		orderEvent := &models.OrderPlacedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderPlaced,
				Timestamp: now,
			},
			OrderID:     order.OrderID,
			DealerID:    order.DealerID,
			ProductID:   order.ProductID,
			WarehouseID: order.WarehouseID,
			Quantity:    order.Quantity,
			UnitPrice:   order.UnitPrice,
			TotalCost:   order.TotalCost,
			OrderDate:   order.OrderDate.Format(time.RFC3339),
			SalesRepID:  order.SalesRepID,
		}
		if err := e.publisher.PublishOrderPlaced(ctx, orderEvent); err != nil {
			util.GetLogger().Warn("Failed to publish order event", zap.Error(err))
		}

		invEvent := &models.InventoryUpdatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeInventoryUpdated,
				Timestamp: now,
			},
			ProductID:   order.ProductID,
			WarehouseID: order.WarehouseID,
			NewQuantity: remaining,
		}
		if err := e.publisher.PublishInventoryUpdated(ctx, invEvent); err != nil {
			util.GetLogger().Warn("Failed to publish inventory event", zap.Error(err))
		}
	}

	return fmt.Sprintf("✅ Order %s placed: %d units of %s for dealer %s, total ₹%.2f. Remaining stock at %s: %d.",
		order.OrderID, order.Quantity, order.ProductID, order.DealerID, order.TotalCost, order.WarehouseID, remaining)
}

// CheckStockAvailability is the info path for stock questions.
func (e *OrderEngine) CheckStockAvailability(ctx context.Context, productID string, quantity int) (*models.StockAvailability, error) {
	if quantity <= 0 {
		quantity = 1
	}
	return e.store.GetStockAvailability(ctx, productID, quantity)
}

// StockSummary renders availability for info turns that name a product
// and a quantity. Returns "" when the turn is not a stock question or
// the product cannot be resolved; the query pipelines still run.
func (e *OrderEngine) StockSummary(ctx context.Context, details *OrderDetails) string {
	if details.Quantity <= 0 || (details.ProductID == "" && details.ProductName == "") {
		return ""
	}
	e.resolveIdentifiers(ctx, details)
	if details.ProductID == "" {
		return ""
	}

	stock, err := e.CheckStockAvailability(ctx, details.ProductID, details.Quantity)
	if err != nil {
		util.GetLogger().Warn("Stock availability check failed",
			zap.String("product_id", details.ProductID), zap.Error(err))
		return ""
	}
	if len(stock.Warehouses) == 0 {
		if stock.Message != "" {
			return stock.Message
		}
		return fmt.Sprintf("%s is out of stock at every warehouse.", details.ProductID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Stock check for %s (need %d units): %d units in total.",
		stock.ProductName, stock.RequiredQuantity, stock.TotalStock)
	for _, w := range stock.Warehouses {
		fmt.Fprintf(&b, "\n%s (%s, %s zone): %d units", w.WarehouseID, w.Location, w.Zone, w.Quantity)
		if w.Sufficient {
			b.WriteString(" - can cover the full quantity")
		}
	}
	if stock.Message != "" {
		fmt.Fprintf(&b, "\n%s", stock.Message)
	}
	return b.String()
}
