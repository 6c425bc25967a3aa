package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tyre-assistant/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetSessionByUsername builds a request session for a known user,
// joining the dealer and sales-rep records. A dealer session inherits
// its dealer's assigned sales rep so order requests can be routed.
func (s *Store) GetSessionByUsername(ctx context.Context, username string) (*models.Session, error) {
	row := struct {
		UserID       int64   `db:"user_id"`
		Username     string  `db:"username"`
		Role         string  `db:"role"`
		DealerID     *string `db:"dealer_id"`
		DealerName   *string `db:"dealer_name"`
		SalesRepID   *string `db:"sales_rep_id"`
		SalesRepName *string `db:"sales_rep_name"`
	}{}

	query := `
		SELECT u.user_id, u.username, u.role, u.dealer_id, d.name AS dealer_name,
		       COALESCE(u.sales_rep_id, d.sales_rep_id) AS sales_rep_id, s.name AS sales_rep_name
		FROM users u
		LEFT JOIN dealer d ON u.dealer_id = d.dealer_id
		LEFT JOIN sales_reps s ON COALESCE(u.sales_rep_id, d.sales_rep_id) = s.sales_rep_id
		WHERE u.username = $1`

	err := s.db.GetContext(ctx, &row, query, username)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %s", username)
	}
	if err != nil {
		return nil, err
	}

	return &models.Session{
		UserID:       row.UserID,
		Username:     row.Username,
		Role:         row.Role,
		DealerID:     row.DealerID,
		DealerName:   row.DealerName,
		SalesRepID:   row.SalesRepID,
		SalesRepName: row.SalesRepName,
	}, nil
}

// GetProduct retrieves a product by its SKU
func (s *Store) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM product WHERE product_id = $1", productID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product not found: %s", productID)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetDealer retrieves a dealer by id
func (s *Store) GetDealer(ctx context.Context, dealerID string) (*models.Dealer, error) {
	var dealer models.Dealer
	err := s.db.GetContext(ctx, &dealer, "SELECT * FROM dealer WHERE dealer_id = $1", dealerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dealer not found: %s", dealerID)
	}
	if err != nil {
		return nil, err
	}
	return &dealer, nil
}

// ResolveDealerID finds a dealer id by partial, case-insensitive name
// match. First match wins; no ranking.
func (s *Store) ResolveDealerID(ctx context.Context, name string) (string, error) {
	var id string
	err := s.db.GetContext(ctx, &id,
		"SELECT dealer_id FROM dealer WHERE name ILIKE $1 LIMIT 1", "%"+name+"%")
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// ResolveProductID finds a product id by partial name match, ignoring
// case and spaces so "Speedo Cruze" matches "SpeedoCruze".
func (s *Store) ResolveProductID(ctx context.Context, name string) (string, error) {
	var id string
	err := s.db.GetContext(ctx, &id,
		"SELECT product_id FROM product WHERE REPLACE(LOWER(product_name), ' ', '') ILIKE $1 LIMIT 1",
		"%"+squash(name)+"%")
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// ResolveWarehouseID finds a warehouse id by partial location match.
func (s *Store) ResolveWarehouseID(ctx context.Context, location string) (string, error) {
	var id string
	err := s.db.GetContext(ctx, &id,
		"SELECT warehouse_id FROM warehouse WHERE location ILIKE $1 LIMIT 1", "%"+location+"%")
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// DealerNames returns all distinct dealer names for the entity cache.
func (s *Store) DealerNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names,
		"SELECT DISTINCT name FROM dealer WHERE name IS NOT NULL")
	return names, err
}

// SalesRepNames returns all distinct sales-rep names for the entity cache.
func (s *Store) SalesRepNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names,
		"SELECT DISTINCT name FROM sales_reps WHERE name IS NOT NULL")
	return names, err
}

// ProductIDs returns all product SKUs for the entity cache.
func (s *Store) ProductIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT DISTINCT product_id FROM product WHERE product_id IS NOT NULL")
	return ids, err
}

// WarehouseLocations returns all warehouse locations for the entity cache.
func (s *Store) WarehouseLocations(ctx context.Context) ([]string, error) {
	var locations []string
	err := s.db.SelectContext(ctx, &locations,
		"SELECT DISTINCT location FROM warehouse WHERE location IS NOT NULL")
	return locations, err
}

// SalesProgress returns a rep's monthly quota position.
func (s *Store) SalesProgress(ctx context.Context, salesRepID string) (*models.SalesProgress, error) {
	row := struct {
		Target   float64 `db:"monthly_sales_target"`
		Achieved float64 `db:"monthly_sales_achieved"`
	}{}
	err := s.db.GetContext(ctx, &row,
		"SELECT monthly_sales_target, COALESCE(monthly_sales_achieved, 0) AS monthly_sales_achieved FROM sales_reps WHERE sales_rep_id = $1",
		salesRepID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sales rep not found: %s", salesRepID)
	}
	if err != nil {
		return nil, err
	}

	progress := 0.0
	if row.Target > 0 {
		progress = row.Achieved / row.Target * 100
		if progress > 100 {
			progress = 100
		}
	}
	return &models.SalesProgress{Target: row.Target, Achieved: row.Achieved, Progress: progress}, nil
}

func squash(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == ' ' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
