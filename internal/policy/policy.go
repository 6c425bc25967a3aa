// Package policy produces the role-based access-control text injected
// into generation prompts, plus the hard gates the order engine enforces.
// Prompt fragments are advisory hints for the completion provider; every
// security decision is also enforced in code.
package policy

import (
	"fmt"

	"tyre-assistant/internal/models"
)

// CanPlaceOrder reports whether the session may execute an order
// transaction. Enforced server-side regardless of any generated text.
func CanPlaceOrder(s *models.Session) bool {
	return s != nil && s.IsSalesRep()
}

// CanRequestOrder reports whether the session may create a pending order
// request routed to a sales rep.
func CanRequestOrder(s *models.Session) bool {
	return s != nil && s.IsDealer()
}

// SQLConstraints returns the access-control instructions for the SQL
// synthesis prompt.
func SQLConstraints(s *models.Session) string {
	switch {
	case s.IsDealer():
		return fmt.Sprintf(`IMPORTANT ROLE-BASED ACCESS CONTROL:
- The current user is a DEALER with dealer_id = '%s' (dealer name: '%s')
- Dealers can access:
  * All inventory/stock data (no dealer filter needed)
  * ONLY their own claims -> Add: AND c.dealer_id = '%s'
  * ONLY orders placed for them, and cannot place orders -> Add: AND o.dealer_id = '%s'
- DO NOT allow access to data of other dealers.`,
			s.Dealer(), deref(s.DealerName), s.Dealer(), s.Dealer())

	case s.IsSalesRep():
		return fmt.Sprintf(`IMPORTANT ROLE-BASED ACCESS CONTROL:
- The current user is a SALES REPRESENTATIVE with sales_rep_id = '%s' (name: '%s')
- Sales reps can access:
  * Inventory and product info (no restriction)
  * ONLY their own orders -> Add: AND o.sales_rep_id = '%s'
  * ONLY claims submitted by dealers assigned to them -> Add:
    AND c.dealer_id IN (SELECT d.dealer_id FROM dealer d WHERE d.sales_rep_id = '%s')
- DO NOT allow access to claims of unassigned dealers, orders placed by
  other sales reps, or data belonging to other users.`,
			s.SalesRep(), deref(s.SalesRepName), s.SalesRep(), s.SalesRep())

	default:
		return `IMPORTANT ROLE-BASED ACCESS CONTROL:
- The current user is an ADMIN
- Admins have full unrestricted access to all data and tables.`
	}
}

// AnswerConstraints returns the access-restriction reminder for the
// final answer prompt, mirroring SQLConstraints.
func AnswerConstraints(s *models.Session) string {
	header := fmt.Sprintf("User Info:\n- Username: %s\n- Role: %s\n", s.Username, s.Role)

	switch {
	case s.IsDealer():
		return header + fmt.Sprintf(`- Dealer Name: %s
- Dealer ID: %s

ACCESS RESTRICTIONS:
- The user is a DEALER.
- Dealers can view product and inventory data.
- Dealers can request orders, which are sent to their assigned sales representative for approval and placement.
- They may only view claims and orders belonging to their own dealer_id.
- If the dealer asks about another dealer's data, respond with:
  'As a dealer, you do not have access to other dealers' data.'`,
			deref(s.DealerName), s.Dealer())

	case s.IsSalesRep():
		return header + fmt.Sprintf(`- Sales Rep ID: %s
- Sales Rep Name: %s

ACCESS RESTRICTIONS:
- The user is a SALES REPRESENTATIVE.
- Sales reps can view all product and inventory data.
- They can only view orders that they have placed.
- They can view claims of dealers assigned to them.`,
			s.SalesRep(), deref(s.SalesRepName))

	default:
		return header + `
ACCESS RESTRICTIONS:
- The user is an ADMIN.
- Admins have full access to ALL data.`
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
