package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextOrderID(t *testing.T) {
	assert.Equal(t, "ORD0001", nextOrderID(""))
	assert.Equal(t, "ORD0006", nextOrderID("ORD0005"))
	assert.Equal(t, "ORD0100", nextOrderID("ORD0099"))
	assert.Equal(t, "ORD10000", nextOrderID("ORD9999"))
}

func TestNextOrderIDGarbageInput(t *testing.T) {
	// A malformed max falls back to the start of the sequence rather
	// than failing the transaction.
	assert.Equal(t, "ORD0001", nextOrderID("garbage"))
	assert.Equal(t, "ORD0001", nextOrderID("ORDabc"))
}

func TestPlaceOrderTx(t *testing.T) {
	t.Skip("Integration test - requires PostgreSQL")

	// Would test:
	// - order id increments past the current maximum
	// - rows with ids outside the ORD#### format are ignored when
	//   picking the maximum
	// - total_cost equals unit price times quantity
	// - inventory deducted at the chosen warehouse only
	// - monthly_sales_achieved credited with total_cost
	// - rollback leaves inventory and sales counters untouched when
	//   stock is insufficient
}

func TestGetStockAvailability(t *testing.T) {
	t.Skip("Integration test - requires PostgreSQL")
}
