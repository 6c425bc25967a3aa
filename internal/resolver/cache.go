package resolver

import (
	"context"
	"strings"
	"sync"

	"tyre-assistant/internal/util"

	"go.uber.org/zap"
)

// Thresholds for entity correction, on the 0-100 Ratio scale.
const (
	nameTokenThreshold = 75
	productThreshold   = 80
	warehouseThreshold = 80
	minTokenLen        = 4
)

// EntitySource supplies canonical entity names, typically backed by the
// relational store.
type EntitySource interface {
	DealerNames(ctx context.Context) ([]string, error)
	SalesRepNames(ctx context.Context) ([]string, error)
	ProductIDs(ctx context.Context) ([]string, error)
	WarehouseLocations(ctx context.Context) ([]string, error)
}

// EntityMirror persists entity sets across restarts (redis). Optional.
type EntityMirror interface {
	StoreEntitySet(ctx context.Context, name string, values []string) error
	LoadEntitySet(ctx context.Context, name string) ([]string, error)
}

// Cache holds canonical entity names for fuzzy correction. Refreshed once
// at process start; staleness between refreshes is accepted.
type Cache struct {
	mu         sync.RWMutex
	dealers    []string
	salesReps  []string
	products   []string
	warehouses []string
	mirror     EntityMirror
	logger     *zap.Logger
}

// NewCache creates an empty entity cache. mirror may be nil.
func NewCache(mirror EntityMirror) *Cache {
	return &Cache{
		mirror: mirror,
		logger: util.GetLogger(),
	}
}

// Refresh reloads all entity sets from the source. When the source is
// unreachable and a mirror is configured, the last mirrored sets are used.
func (c *Cache) Refresh(ctx context.Context, src EntitySource) error {
	dealers, err := src.DealerNames(ctx)
	if err != nil {
		return c.restoreFromMirror(ctx, err)
	}
	salesReps, err := src.SalesRepNames(ctx)
	if err != nil {
		return c.restoreFromMirror(ctx, err)
	}
	products, err := src.ProductIDs(ctx)
	if err != nil {
		return c.restoreFromMirror(ctx, err)
	}
	warehouses, err := src.WarehouseLocations(ctx)
	if err != nil {
		return c.restoreFromMirror(ctx, err)
	}

	c.mu.Lock()
	c.dealers = dealers
	c.salesReps = salesReps
	c.products = products
	c.warehouses = warehouses
	c.mu.Unlock()

	if c.mirror != nil {
		for name, values := range map[string][]string{
			"dealers":    dealers,
			"sales_reps": salesReps,
			"products":   products,
			"warehouses": warehouses,
		} {
			if err := c.mirror.StoreEntitySet(ctx, name, values); err != nil {
				c.logger.Warn("Failed to mirror entity set",
					zap.String("set", name), zap.Error(err))
			}
		}
	}

	c.logger.Info("Entity cache refreshed",
		zap.Int("dealers", len(dealers)),
		zap.Int("sales_reps", len(salesReps)),
		zap.Int("products", len(products)),
		zap.Int("warehouses", len(warehouses)))
	return nil
}

func (c *Cache) restoreFromMirror(ctx context.Context, cause error) error {
	if c.mirror == nil {
		return cause
	}
	dealers, err := c.mirror.LoadEntitySet(ctx, "dealers")
	if err != nil {
		return cause
	}
	salesReps, _ := c.mirror.LoadEntitySet(ctx, "sales_reps")
	products, _ := c.mirror.LoadEntitySet(ctx, "products")
	warehouses, _ := c.mirror.LoadEntitySet(ctx, "warehouses")

	c.mu.Lock()
	c.dealers = dealers
	c.salesReps = salesReps
	c.products = products
	c.warehouses = warehouses
	c.mu.Unlock()

	c.logger.Warn("Entity cache restored from mirror", zap.Error(cause))
	return nil
}

// Seed replaces the cached sets directly. Used by tests.
func (c *Cache) Seed(dealers, salesReps, products, warehouses []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dealers = dealers
	c.salesReps = salesReps
	c.products = products
	c.warehouses = warehouses
}

// CorrectEntities rewrites near-miss entity mentions in text to their
// canonical forms. Each input token is corrected at most once, in a
// single pass, so corrections never compound.
func (c *Cache) CorrectEntities(text string) string {
	c.mu.RLock()
	nameTokens := nameTokenSet(c.dealers, c.salesReps)
	products := c.products
	warehouses := c.warehouses
	c.mu.RUnlock()

	tokens := strings.Fields(text)
	for i, tok := range tokens {
		if repl, ok := correctToken(tok, nameTokens, products, warehouses); ok {
			tokens[i] = repl
		}
	}
	return strings.Join(tokens, " ")
}

// correctToken finds the single best replacement for one token, trying
// name tokens, then product ids, then warehouse locations.
func correctToken(tok string, nameTokens []string, products, warehouses []string) (string, bool) {
	norm := Normalize(tok)
	if len(norm) < minTokenLen {
		return "", false
	}

	for _, name := range nameTokens {
		if norm == name {
			return "", false // already canonical
		}
		if Ratio(norm, name) >= nameTokenThreshold {
			return name, true
		}
	}

	for _, p := range products {
		pn := Normalize(p)
		if norm == pn {
			return "", false
		}
		if Ratio(norm, pn) >= productThreshold {
			return p, true
		}
	}

	for _, w := range warehouses {
		wn := Normalize(w)
		if norm == wn {
			return "", false
		}
		if Ratio(norm, wn) >= warehouseThreshold {
			return w, true
		}
	}

	return "", false
}

// nameTokenSet flattens dealer and sales-rep names into unique lowercase
// word tokens longer than three characters.
func nameTokenSet(sets ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, set := range sets {
		for _, name := range set {
			for _, w := range strings.Fields(Normalize(name)) {
				if len(w) < minTokenLen {
					continue
				}
				if _, ok := seen[w]; ok {
					continue
				}
				seen[w] = struct{}{}
				out = append(out, w)
			}
		}
	}
	return out
}
