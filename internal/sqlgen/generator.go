// Package sqlgen turns natural-language questions into guarded SQL
// SELECT statements and runs them. Generated text is never trusted: every
// statement passes the allow-list guard before touching the database.
package sqlgen

import (
	"context"
	"fmt"
	"strings"

	"tyre-assistant/internal/llm"
	"tyre-assistant/internal/models"
	"tyre-assistant/internal/policy"
)

// NoSQLSentinel is what the generator emits when the question has no
// relational answer. Callers skip execution when they see it.
const NoSQLSentinel = "NO_SQL"

// Completer is the completion call the generator depends on.
type Completer interface {
	Complete(ctx context.Context, req llm.ChatRequest) (string, error)
}

// Generator synthesizes SELECT statements from user questions.
type Generator struct {
	chat Completer
}

// NewGenerator creates a SQL generator backed by a completion provider.
func NewGenerator(chat Completer) *Generator {
	return &Generator{chat: chat}
}

const schemaKnowledge = `Your job is to generate efficient SQL SELECT queries from natural language questions without asking follow up questions.
If the question cannot be answered with a SELECT over these tables, respond with exactly NO_SQL.

Consider product names as a single word, eg treat Urban Bias as UrbanBias, treat Max ATB as MaxATB.

Tables:
1. users(user_id, username, email, role, dealer_id, sales_rep_id)
2. dealer(dealer_id, name, zone, sales_rep_id)
3. claim(claim_id, dealer_id, status, claim_date, product_id, amount, reason, sales_rep_id)
4. product(product_id, product_name, category, price, section_width, aspect_ratio, construction_type, rim_diameter_inch)
5. warehouse(warehouse_id, location, zone)
6. sales_reps(sales_rep_id, name, zone, monthly_sales_target, monthly_sales_achieved)
7. inventory(product_id, warehouse_id, quantity)
8. orders(order_id, dealer_id, product_id, warehouse_id, quantity, unit_price(rupees), total_cost, order_date, sales_rep_id)

Relationships:
- users.dealer_id -> dealer.dealer_id
- dealer.sales_rep_id -> sales_reps.sales_rep_id
- users.sales_rep_id -> sales_reps.sales_rep_id
- claim.dealer_id -> dealer.dealer_id
- claim.sales_rep_id -> sales_reps.sales_rep_id
- orders joins dealer, sales_reps, product, warehouse
- inventory joins product and warehouse
`

const templateKnowledge = `
You can directly use one of these templates if it matches the intent. Substitute variables if needed:

-- [TEMPLATE_1] Stocks in all warehouses:
SELECT p.product_id, p.product_name, w.location AS warehouse_location, i.quantity
FROM inventory i
JOIN product p ON i.product_id = p.product_id
JOIN warehouse w ON i.warehouse_id = w.warehouse_id
ORDER BY p.product_id, w.location;

-- [TEMPLATE_2] Similar products to a given product:
SELECT p2.product_name
FROM product p1
JOIN product p2 ON p1.category = p2.category
WHERE p1.product_name = '{product_name}' AND p2.product_name <> '{product_name}'
LIMIT 5;

-- [TEMPLATE_3] Orders placed for the current dealer:
SELECT o.dealer_id, o.order_id, o.order_date, o.product_id, p.product_name, o.quantity, o.total_cost
FROM orders o
JOIN product p ON o.product_id = p.product_id
WHERE o.dealer_id = '{dealer_id}'
ORDER BY o.order_date DESC
LIMIT 3;

-- [TEMPLATE_4] Sales rep assigned to each dealer:
SELECT s.name AS sales_rep_name
FROM dealer d
JOIN sales_reps s ON d.sales_rep_id = s.sales_rep_id;

You MUST substitute values like {dealer_id} or {product_name} using context or metadata if available.
If no template matches, generate SQL normally.

Rules:
1. Output a single SELECT statement and nothing else.
2. Use table aliases like o = orders, c = claim, p = product.
3. Use ILIKE for string filtering and partial matches.
`

// Synthesize produces a SQL statement (or the NO_SQL sentinel) for the
// corrected question, scoped by the session's role constraints. At most
// the last three exchanges of history are included for follow-ups.
func (g *Generator) Synthesize(ctx context.Context, session *models.Session, query string, history []models.Exchange) (string, error) {
	if len(history) > 3 {
		history = history[len(history)-3:]
	}

	var hist strings.Builder
	for i, ex := range history {
		fmt.Fprintf(&hist, "\nExchange %d:\nUser: %s\nAssistant: %s\n", i+1, ex.UserQuery, ex.AIResponse)
	}

	system := schemaKnowledge + "\n" + policy.SQLConstraints(session) + templateKnowledge +
		"\nRecent conversation context:\n" + hist.String()

	raw, err := g.chat.Complete(ctx, llm.ChatRequest{
		System:      system,
		User:        query,
		Temperature: 0,
		MaxTokens:   250,
		Operation:   "sql_synthesis",
	})
	if err != nil {
		return "", fmt.Errorf("sql synthesis failed: %w", err)
	}

	return Sanitize(raw), nil
}
