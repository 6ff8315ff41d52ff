package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/research-output-api/internal/models"
)

// suggestionRepo is the concrete implementation of SuggestionRepository
type suggestionRepo struct {
	q Querier
}

// Create inserts a suggestion
func (r *suggestionRepo) Create(ctx context.Context, s *models.Suggested) error {
	query := `
		INSERT INTO suggested (research_item_id, research_entity_id, type, discarded)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.q.QueryRowContext(ctx, query, s.ResearchItemID, s.ResearchEntityID, s.Type, s.Discarded).Scan(&s.ID, &s.CreatedAt)
	return mapError(err)
}

// FindOrCreate loads the suggestion of (item, entity, type) or inserts it.
// Reports whether a row was created.
func (r *suggestionRepo) FindOrCreate(ctx context.Context, s *models.Suggested) (bool, error) {
	insert := `
		INSERT INTO suggested (research_item_id, research_entity_id, type, discarded)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (research_item_id, research_entity_id, type) DO NOTHING
		RETURNING id, created_at
	`
	err := r.q.QueryRowContext(ctx, insert, s.ResearchItemID, s.ResearchEntityID, s.Type, s.Discarded).Scan(&s.ID, &s.CreatedAt)
	if err == nil {
		return true, nil
	}
	if err = mapError(err); !isNoRows(err) {
		return false, err
	}

	query := `
		SELECT id, discarded, created_at FROM suggested
		WHERE research_item_id = $1 AND research_entity_id = $2 AND type = $3
	`
	err = r.q.QueryRowContext(ctx, query, s.ResearchItemID, s.ResearchEntityID, s.Type).Scan(&s.ID, &s.Discarded, &s.CreatedAt)
	return false, err
}

// Exists reports whether the entity has any suggestion row for the item
func (r *suggestionRepo) Exists(ctx context.Context, itemID, entityID int64) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM suggested WHERE research_item_id = $1 AND research_entity_id = $2)`,
		itemID, entityID,
	).Scan(&exists)
	return exists, err
}

// ListByEntity returns the suggestions of an entity, optionally of one type
func (r *suggestionRepo) ListByEntity(ctx context.Context, entityID int64, t models.SuggestionType) ([]*models.Suggested, error) {
	b := psql.Select("id", "research_item_id", "research_entity_id", "type", "discarded", "created_at").
		From("suggested").
		Where(sq.Eq{"research_entity_id": entityID}).
		OrderBy("research_item_id")
	if t != "" {
		b = b.Where(sq.Eq{"type": t})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Suggested
	for rows.Next() {
		var s models.Suggested
		if err := rows.Scan(&s.ID, &s.ResearchItemID, &s.ResearchEntityID, &s.Type, &s.Discarded, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Discard marks the entity's suggestions of the given items as discarded
func (r *suggestionRepo) Discard(ctx context.Context, entityID int64, itemIDs []int64) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE suggested SET discarded = true WHERE research_entity_id = $1 AND research_item_id = ANY($2)`,
		entityID, pq.Array(itemIDs),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Remove deletes the suggestions matching the filter
func (r *suggestionRepo) Remove(ctx context.Context, f SuggestionFilter) (int64, error) {
	where := sq.Eq{"research_entity_id": f.ResearchEntityID}
	if f.ResearchItemID > 0 {
		where["research_item_id"] = f.ResearchItemID
	}
	if f.Type != "" {
		where["type"] = f.Type
	}

	query, args, err := psql.Delete("suggested").Where(where).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AliasMatchesForItem returns entities whose alias equals an author name of a verified item
func (r *suggestionRepo) AliasMatchesForItem(ctx context.Context, itemID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT al.research_entity_id
		FROM research_item ri
		JOIN author au ON au.research_item_id = ri.id
		JOIN alias al ON al.value = au.name
		WHERE ri.id = $1
			AND ri.kind = 'verified'
			AND NOT EXISTS (
				SELECT 1 FROM verified v
				WHERE v.research_item_id = ri.id AND v.research_entity_id = al.research_entity_id
			)
		ORDER BY al.research_entity_id
	`
	rows, err := r.q.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// AliasMatchesForEntity returns verified items with an author named like one of the entity's aliases
func (r *suggestionRepo) AliasMatchesForEntity(ctx context.Context, entityID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT ri.id
		FROM alias al
		JOIN author au ON au.name = al.value
		JOIN research_item ri ON ri.id = au.research_item_id
		WHERE al.research_entity_id = $1
			AND ri.kind = 'verified'
			AND NOT EXISTS (
				SELECT 1 FROM verified v
				WHERE v.research_item_id = ri.id AND v.research_entity_id = al.research_entity_id
			)
		ORDER BY ri.id
	`
	rows, err := r.q.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}
