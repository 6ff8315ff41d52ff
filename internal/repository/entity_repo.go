package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/research-output-api/internal/models"
)

// entityRepo is the concrete implementation of EntityRepository
type entityRepo struct {
	q Querier
}

// Create inserts a new research entity
func (r *entityRepo) Create(ctx context.Context, e *models.ResearchEntity) error {
	query := `
		INSERT INTO research_entity (type, name)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`
	err := r.q.QueryRowContext(ctx, query, e.Type, e.Name).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return mapError(err)
}

// GetByID retrieves a research entity by ID
func (r *entityRepo) GetByID(ctx context.Context, id int64) (*models.ResearchEntity, error) {
	query := `SELECT id, type, name, created_at, updated_at FROM research_entity WHERE id = $1`

	var e models.ResearchEntity
	err := r.q.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.Type, &e.Name, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// AddGroupOwner grants the group_owner role on a group to a person
func (r *entityRepo) AddGroupOwner(ctx context.Context, personID, groupID int64) error {
	query := `
		INSERT INTO research_entity_owner (person_research_entity_id, group_research_entity_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := r.q.ExecContext(ctx, query, personID, groupID)
	return mapError(err)
}

// OwnedGroupIDs returns the groups the person holds the group_owner role on
func (r *entityRepo) OwnedGroupIDs(ctx context.Context, personID int64) ([]int64, error) {
	query := `
		SELECT group_research_entity_id FROM research_entity_owner
		WHERE person_research_entity_id = $1
		ORDER BY group_research_entity_id
	`
	rows, err := r.q.QueryContext(ctx, query, personID)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// aliasRepo is the concrete implementation of AliasRepository
type aliasRepo struct {
	q Querier
}

// Create inserts a new alias
func (r *aliasRepo) Create(ctx context.Context, a *models.Alias) error {
	query := `
		INSERT INTO alias (research_entity_id, value, main)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.q.QueryRowContext(ctx, query, a.ResearchEntityID, a.Value, a.Main).Scan(&a.ID, &a.CreatedAt)
	return mapError(err)
}

// Delete removes an alias of the entity
func (r *aliasRepo) Delete(ctx context.Context, entityID, aliasID int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM alias WHERE id = $1 AND research_entity_id = $2`, aliasID, entityID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListByEntity returns the aliases of an entity
func (r *aliasRepo) ListByEntity(ctx context.Context, entityID int64) ([]*models.Alias, error) {
	query := `
		SELECT id, research_entity_id, value, main, created_at
		FROM alias WHERE research_entity_id = $1
		ORDER BY main DESC, id
	`
	rows, err := r.q.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aliases []*models.Alias
	for rows.Next() {
		var a models.Alias
		if err := rows.Scan(&a.ID, &a.ResearchEntityID, &a.Value, &a.Main, &a.CreatedAt); err != nil {
			return nil, err
		}
		aliases = append(aliases, &a)
	}
	return aliases, rows.Err()
}
