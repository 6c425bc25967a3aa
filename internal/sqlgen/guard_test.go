package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStripsFences(t *testing.T) {
	assert.Equal(t, "SELECT 1", Sanitize("```sql\nSELECT 1\n```"))
	assert.Equal(t, "SELECT 1", Sanitize("```\nSELECT 1\n```"))
	assert.Equal(t, "SELECT 1", Sanitize("  SELECT 1  "))
}

func TestIsSafeSelectAccepts(t *testing.T) {
	assert.True(t, IsSafeSelect("SELECT * FROM product"))
	assert.True(t, IsSafeSelect("select p.product_name from product p where p.price > 100;"))
	assert.True(t, IsSafeSelect("WITH top AS (SELECT * FROM orders) SELECT * FROM top"))
	// Forbidden words inside string literals are data, not statements.
	assert.True(t, IsSafeSelect("SELECT * FROM claim c WHERE c.reason ILIKE '%update%'"))
	assert.True(t, IsSafeSelect("SELECT * FROM dealer WHERE name = 'O''Drop Traders'"))
}

func TestIsSafeSelectRejects(t *testing.T) {
	assert.False(t, IsSafeSelect(""))
	assert.False(t, IsSafeSelect("NO_SQL"))
	assert.False(t, IsSafeSelect("DELETE FROM orders"))
	assert.False(t, IsSafeSelect("UPDATE inventory SET quantity = 0"))
	// Statement injection after a legitimate SELECT.
	assert.False(t, IsSafeSelect("SELECT * FROM product; DROP TABLE orders"))
	assert.False(t, IsSafeSelect("SELECT * FROM product; SELECT * FROM users"))
	// Write keywords outside quotes anywhere in the statement.
	assert.False(t, IsSafeSelect("SELECT * FROM product WHERE 1=1 UNION SELECT * FROM users; TRUNCATE orders"))
}

func TestIsSafeSelectKeywordBoundaries(t *testing.T) {
	// Column or alias names containing a forbidden substring are fine.
	assert.True(t, IsSafeSelect("SELECT updated_at FROM orders_view"))
	assert.True(t, IsSafeSelect("SELECT created_at FROM claim"))
}

func TestContextualize(t *testing.T) {
	assert.Equal(t, NoResultsSentinel, Contextualize(nil))

	out := Contextualize([]map[string]interface{}{
		{"product_name": "SpeedoCruze", "quantity": 12, "note": nil},
		{"product_name": "MaxATB", "quantity": 3},
	})
	assert.Equal(t, "product_name: SpeedoCruze\nquantity: 12\n\nproduct_name: MaxATB\nquantity: 3", out)
}
