package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/research-output-api/internal/models"
)

// verifiedRepo is the concrete implementation of VerifiedRepository
type verifiedRepo struct {
	q Querier
}

// Create inserts a verification; a second claim of the same pair is ErrUniqueViolation
func (r *verifiedRepo) Create(ctx context.Context, v *models.Verified) error {
	query := `
		INSERT INTO verified (research_item_id, research_entity_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	err := r.q.QueryRowContext(ctx, query, v.ResearchItemID, v.ResearchEntityID).Scan(&v.ID, &v.CreatedAt)
	return mapError(err)
}

// Get returns the verification of an item by an entity
func (r *verifiedRepo) Get(ctx context.Context, itemID, entityID int64) (*models.Verified, error) {
	query := `
		SELECT id, research_item_id, research_entity_id, created_at
		FROM verified WHERE research_item_id = $1 AND research_entity_id = $2
	`
	var v models.Verified
	err := r.q.QueryRowContext(ctx, query, itemID, entityID).Scan(&v.ID, &v.ResearchItemID, &v.ResearchEntityID, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Delete removes the verification of an item by an entity
func (r *verifiedRepo) Delete(ctx context.Context, itemID, entityID int64) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM verified WHERE research_item_id = $1 AND research_entity_id = $2`,
		itemID, entityID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByItem counts the verifications of an item
func (r *verifiedRepo) CountByItem(ctx context.Context, itemID int64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM verified WHERE research_item_id = $1`, itemID).Scan(&n)
	return n, err
}

// ListByItems returns the verifications of the given items
func (r *verifiedRepo) ListByItems(ctx context.Context, itemIDs []int64) ([]*models.Verified, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, research_item_id, research_entity_id, created_at
		FROM verified WHERE research_item_id = ANY($1)
		ORDER BY id
	`
	rows, err := r.q.QueryContext(ctx, query, pq.Array(itemIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Verified
	for rows.Next() {
		var v models.Verified
		if err := rows.Scan(&v.ID, &v.ResearchItemID, &v.ResearchEntityID, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}
