package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "speedocruze pro", Normalize("  SpeedoCruze,  Pro! "))
	assert.Equal(t, "urban bias 24", Normalize("Urban-Bias (24)"))
	assert.Equal(t, "", Normalize("!!! ..."))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Show me Claims for Dealer 999?",
		"  MaxATB   radial,  W12 ",
		"ORD0042",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 100, Ratio("speedocruze", "speedocruze"))
	assert.Equal(t, 100, Ratio("", ""))
	assert.Equal(t, 0, Ratio("abc", "xyz"))

	// One edit over combined length 21.
	assert.Equal(t, 90, Ratio("speedocruze", "speedocruz"))

	// Transposition costs two edits.
	assert.GreaterOrEqual(t, Ratio("urbanbais", "urbanbias"), 75)
}

func TestFuzzyMatch(t *testing.T) {
	candidates := []string{"SpeedoCruze", "UrbanBias", "MaxATB"}

	best, score := FuzzyMatch("speedocruz", candidates, 70)
	assert.Equal(t, "SpeedoCruze", best)
	assert.GreaterOrEqual(t, score, 70)

	best, score = FuzzyMatch("completely unrelated", candidates, 70)
	assert.Empty(t, best)
	assert.Zero(t, score)

	best, _ = FuzzyMatch("", candidates, 70)
	assert.Empty(t, best)
}

func TestCorrectEntities(t *testing.T) {
	c := NewCache(nil)
	c.Seed(
		[]string{"Pooja Singh", "Ravi Kumar"},
		[]string{"Anita Desai"},
		[]string{"SpeedoCruze", "UrbanBias"},
		[]string{"Chennai", "Mumbai"},
	)

	got := c.CorrectEntities("orders for pooja sing")
	assert.Equal(t, "orders for pooja singh", got)

	// Product name typo.
	got = c.CorrectEntities("stock of speedocruz please")
	assert.Equal(t, "stock of SpeedoCruze please", got)

	// Warehouse location typo.
	got = c.CorrectEntities("inventory in chenai")
	assert.Equal(t, "inventory in Chennai", got)

	// Canonical mentions stay untouched.
	got = c.CorrectEntities("claims by ravi kumar")
	assert.Equal(t, "claims by ravi kumar", got)

	// Short tokens are never rewritten.
	got = c.CorrectEntities("top 5 of all")
	assert.Equal(t, "top 5 of all", got)
}

func TestCorrectEntitiesSinglePass(t *testing.T) {
	c := NewCache(nil)
	c.Seed([]string{"Singh Traders"}, nil, []string{"Singha"}, nil)

	// A token is corrected at most once, never re-corrected by a later set.
	got := c.CorrectEntities("invoice for singh")
	assert.Equal(t, "invoice for singh", got)
}
