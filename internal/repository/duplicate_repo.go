package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/research-output-api/internal/models"
)

// duplicateRepo is the concrete implementation of DuplicateRepository
type duplicateRepo struct {
	q Querier
}

// Candidates returns the candidate pool of a duplicate calculation.
// In verified mode an item verified by several scoped entities appears once per entity.
func (r *duplicateRepo) Candidates(ctx context.Context, cq CandidateQuery) ([]Candidate, error) {
	if cq.Mode == CandidatesVerified && len(cq.EntityIDs) == 0 {
		return nil, nil
	}
	query, args, err := candidateSQL(cq)
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ResearchItemID, &c.ResearchEntityID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func candidateSQL(cq CandidateQuery) (string, []any, error) {
	var b sq.SelectBuilder

	switch cq.Mode {
	case CandidatesVerified:
		b = psql.Select("v.research_item_id", "v.research_entity_id").Distinct().
			From("verified v").
			Join("research_item ri ON ri.id = v.research_item_id").
			Where(sq.Eq{
				"v.research_entity_id":     cq.EntityIDs,
				"ri.research_item_type_id": cq.ResearchItemTypeID,
			}).
			Where(sq.NotEq{"ri.id": cq.ResearchItemID}).
			OrderBy("v.research_item_id", "v.research_entity_id")
	case CandidatesDraftAndSuggested:
		b = psql.Select("ri.id", fmt.Sprintf("%d::bigint", cq.ResearchEntityID)).
			From("research_item ri").
			Where(sq.Eq{"ri.research_item_type_id": cq.ResearchItemTypeID}).
			Where(sq.NotEq{"ri.id": cq.ResearchItemID}).
			Where(sq.Or{
				sq.Eq{"ri.kind": models.KindDraft, "ri.creator_research_entity_id": cq.ResearchEntityID},
				sq.Expr(`EXISTS (SELECT 1 FROM suggested s
					WHERE s.research_item_id = ri.id AND s.research_entity_id = ? AND s.discarded = false)`,
					cq.ResearchEntityID),
			}).
			OrderBy("ri.id")
	default:
		return "", nil, fmt.Errorf("unknown candidate mode %q", cq.Mode)
	}
	return b.ToSql()
}

// UpdateOrCreate upserts an edge. The stored flag is ANDed with the new one,
// so an edge that is false stays false and writing false always sticks.
func (r *duplicateRepo) UpdateOrCreate(ctx context.Context, d *models.Duplicate) error {
	query := `
		INSERT INTO duplicate (research_item_id, duplicate_id, research_entity_id, is_duplicate)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (research_item_id, duplicate_id, research_entity_id) DO UPDATE SET
			is_duplicate = duplicate.is_duplicate AND EXCLUDED.is_duplicate,
			updated_at = CASE
				WHEN duplicate.is_duplicate AND NOT EXCLUDED.is_duplicate THEN NOW()
				ELSE duplicate.updated_at
			END
		RETURNING id, is_duplicate, created_at, updated_at
	`
	err := r.q.QueryRowContext(ctx, query, d.ResearchItemID, d.DuplicateID, d.ResearchEntityID, d.IsDuplicate).
		Scan(&d.ID, &d.IsDuplicate, &d.CreatedAt, &d.UpdatedAt)
	return mapError(err)
}

func (r *duplicateRepo) list(ctx context.Context, query string, args ...any) ([]*models.Duplicate, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Duplicate
	for rows.Next() {
		var d models.Duplicate
		if err := rows.Scan(&d.ID, &d.ResearchItemID, &d.DuplicateID, &d.ResearchEntityID, &d.IsDuplicate, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// ListActive returns the true edges of an item scoped to an entity
func (r *duplicateRepo) ListActive(ctx context.Context, itemID, entityID int64) ([]*models.Duplicate, error) {
	return r.list(ctx, `
		SELECT id, research_item_id, duplicate_id, research_entity_id, is_duplicate, created_at, updated_at
		FROM duplicate
		WHERE research_item_id = $1 AND research_entity_id = $2 AND is_duplicate = true
		ORDER BY duplicate_id
	`, itemID, entityID)
}

// ListByItem returns every edge that starts at an item
func (r *duplicateRepo) ListByItem(ctx context.Context, itemID int64) ([]*models.Duplicate, error) {
	return r.list(ctx, `
		SELECT id, research_item_id, duplicate_id, research_entity_id, is_duplicate, created_at, updated_at
		FROM duplicate
		WHERE research_item_id = $1
		ORDER BY research_entity_id, duplicate_id
	`, itemID)
}

// DeleteForItem removes the edges of an item scoped to any of the entities
func (r *duplicateRepo) DeleteForItem(ctx context.Context, itemID int64, entityIDs []int64) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM duplicate WHERE research_item_id = $1 AND research_entity_id = ANY($2)`,
		itemID, pq.Array(entityIDs),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByDuplicate removes the edges pointing at an item from an entity's viewpoint
func (r *duplicateRepo) DeleteByDuplicate(ctx context.Context, duplicateID, entityID int64) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM duplicate WHERE duplicate_id = $1 AND research_entity_id = $2`,
		duplicateID, entityID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
