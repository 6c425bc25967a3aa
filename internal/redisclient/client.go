// Package redisclient wraps Redis for the two things the assistant keeps
// out of Postgres: per-session pending order proposals and a mirror of
// the entity-name sets used by the fuzzy corrector.
package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	proposalKeyPrefix = "proposal:"
	entityKeyPrefix   = "entities:"

	// ProposalTTL bounds how long a confirmation can stay actionable.
	ProposalTTL = 10 * time.Minute

	entityTTL = 24 * time.Hour
)

// Proposal is a fully resolved order awaiting the rep's yes or no. It is
// keyed by session id so concurrent sessions never see each other's
// pending orders.
type Proposal struct {
	DealerID    string    `json:"dealer_id"`
	ProductID   string    `json:"product_id"`
	WarehouseID string    `json:"warehouse_id,omitempty"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
}

type Client struct {
	rdb *redis.Client
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SaveProposal stores the pending proposal for a session, replacing any
// previous one.
func (c *Client) SaveProposal(ctx context.Context, sessionID string, p *Proposal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal proposal: %w", err)
	}
	if err := c.rdb.Set(ctx, proposalKeyPrefix+sessionID, data, ProposalTTL).Err(); err != nil {
		return fmt.Errorf("failed to save proposal: %w", err)
	}
	return nil
}

// GetProposal returns the session's pending proposal, or nil when none
// exists or it has expired.
func (c *Client) GetProposal(ctx context.Context, sessionID string) (*Proposal, error) {
	data, err := c.rdb.Get(ctx, proposalKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load proposal: %w", err)
	}

	var p Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proposal: %w", err)
	}
	return &p, nil
}

// ClearProposal removes the session's pending proposal, if any.
func (c *Client) ClearProposal(ctx context.Context, sessionID string) error {
	if err := c.rdb.Del(ctx, proposalKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to clear proposal: %w", err)
	}
	return nil
}

// StoreEntitySet mirrors one entity-name set so the corrector can warm
// its cache without the database.
func (c *Client) StoreEntitySet(ctx context.Context, name string, values []string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal entity set: %w", err)
	}
	if err := c.rdb.Set(ctx, entityKeyPrefix+name, data, entityTTL).Err(); err != nil {
		return fmt.Errorf("failed to store entity set: %w", err)
	}
	return nil
}

// LoadEntitySet returns a mirrored entity-name set, or nil when absent.
func (c *Client) LoadEntitySet(ctx context.Context, name string) ([]string, error) {
	data, err := c.rdb.Get(ctx, entityKeyPrefix+name).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entity set: %w", err)
	}

	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity set: %w", err)
	}
	return values, nil
}
