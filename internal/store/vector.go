package store

import (
	"context"
	"fmt"

	"tyre-assistant/internal/models"
)

// LoadVectorRows returns every retrieval row. The corpus is scanned in
// full per query; it is small enough that an index is not worth it yet.
func (s *Store) LoadVectorRows(ctx context.Context) ([]models.VectorRow, error) {
	var rows []models.VectorRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, table_join, description, embedding, metadata FROM vector_store")
	if err != nil {
		return nil, fmt.Errorf("failed to load vector rows: %w", err)
	}
	return rows, nil
}

// InsertVectorRow appends a new retrieval row.
func (s *Store) InsertVectorRow(ctx context.Context, row *models.VectorRow) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO vector_store (table_join, description, embedding, metadata) VALUES ($1, $2, $3, $4)",
		row.TableJoin, row.Description, row.Embedding, row.Metadata)
	if err != nil {
		return fmt.Errorf("failed to insert vector row: %w", err)
	}
	return nil
}

// LoadVectorRowsByJoin returns rows for one table_join key.
func (s *Store) LoadVectorRowsByJoin(ctx context.Context, tableJoin string) ([]models.VectorRow, error) {
	var rows []models.VectorRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, table_join, description, embedding, metadata FROM vector_store WHERE table_join = $1",
		tableJoin)
	if err != nil {
		return nil, fmt.Errorf("failed to load vector rows for %s: %w", tableJoin, err)
	}
	return rows, nil
}

// UpdateVectorRow rewrites one row's description, embedding and metadata.
func (s *Store) UpdateVectorRow(ctx context.Context, id int64, description, embedding, metadata string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE vector_store SET description = $1, embedding = $2, metadata = $3 WHERE id = $4",
		description, embedding, metadata, id)
	if err != nil {
		return fmt.Errorf("failed to update vector row %d: %w", id, err)
	}
	return nil
}
