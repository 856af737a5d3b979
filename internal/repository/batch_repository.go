package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/classroll/classroll-api/internal/models"
)

// BatchRepository provides read access to batches. Batch CRUD belongs to the
// surrounding admin service; the ledger only resolves names and counts.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository creates a new instance of BatchRepository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// FindByID returns a batch by identifier.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	const query = `SELECT id, name, owner_id, created_at, updated_at FROM batches WHERE id = $1 LIMIT 1`
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find batch by id: %w", err)
	}
	return &batch, nil
}

// Count returns the total number of batches.
func (r *BatchRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM batches`); err != nil {
		return 0, fmt.Errorf("count batches: %w", err)
	}
	return total, nil
}
