package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/research-output-api/internal/models"
)

// itemTypeRepo is the concrete implementation of ItemTypeRepository
type itemTypeRepo struct {
	q Querier
}

// UpsertType inserts or refreshes a catalog row by key
func (r *itemTypeRepo) UpsertType(ctx context.Context, t *models.ResearchItemType) error {
	query := `
		INSERT INTO research_item_type (key, label, short_label, type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			label = EXCLUDED.label,
			short_label = EXCLUDED.short_label,
			type = EXCLUDED.type
		RETURNING id
	`
	return r.q.QueryRowContext(ctx, query, t.Key, t.Label, t.ShortLabel, t.Type).Scan(&t.ID)
}

// GetByID retrieves a research item type by ID
func (r *itemTypeRepo) GetByID(ctx context.Context, id int64) (*models.ResearchItemType, error) {
	query := `SELECT id, key, label, short_label, type FROM research_item_type WHERE id = $1`

	var t models.ResearchItemType
	err := r.q.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Key, &t.Label, &t.ShortLabel, &t.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns the whole catalog
func (r *itemTypeRepo) List(ctx context.Context) ([]*models.ResearchItemType, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, key, label, short_label, type FROM research_item_type ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []*models.ResearchItemType
	for rows.Next() {
		var t models.ResearchItemType
		if err := rows.Scan(&t.ID, &t.Key, &t.Label, &t.ShortLabel, &t.Type); err != nil {
			return nil, err
		}
		types = append(types, &t)
	}
	return types, rows.Err()
}

// itemRepo is the concrete implementation of ItemRepository
type itemRepo struct {
	q Querier
}

const itemColumns = `id, research_item_type_id, kind, creator_research_entity_id, data, created_at, updated_at`

// itemData is sent as text: lib/pq encodes []byte parameters as bytea
func itemData(item *models.ResearchItem) string {
	if len(item.Data) == 0 {
		return "{}"
	}
	return string(item.Data)
}

// Create inserts a new research item
func (r *itemRepo) Create(ctx context.Context, item *models.ResearchItem) error {
	query := `
		INSERT INTO research_item (research_item_type_id, kind, creator_research_entity_id, data)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.q.QueryRowContext(ctx, query,
		item.ResearchItemTypeID, item.Kind, item.CreatorResearchEntityID, itemData(item),
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	return mapError(err)
}

// Update writes type, kind, creator and data of an existing item
func (r *itemRepo) Update(ctx context.Context, item *models.ResearchItem) error {
	query := `
		UPDATE research_item
		SET research_item_type_id = $2, kind = $3, creator_research_entity_id = $4, data = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.q.QueryRowContext(ctx, query,
		item.ID, item.ResearchItemTypeID, item.Kind, item.CreatorResearchEntityID, itemData(item),
	).Scan(&item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("research item %d: %w", item.ID, sql.ErrNoRows)
	}
	return mapError(err)
}

func scanItem(row interface{ Scan(...any) error }) (*models.ResearchItem, error) {
	var item models.ResearchItem
	var creator sql.NullInt64
	var data []byte
	if err := row.Scan(&item.ID, &item.ResearchItemTypeID, &item.Kind, &creator, &data, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if creator.Valid {
		item.CreatorResearchEntityID = &creator.Int64
	}
	item.Data = data
	return &item, nil
}

// GetByID retrieves a research item by ID
func (r *itemRepo) GetByID(ctx context.Context, id int64) (*models.ResearchItem, error) {
	item, err := scanItem(r.q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM research_item WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

// Delete removes an item; authors, claims and projection cascade
func (r *itemRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM research_item WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FindByOrigin finds an item of the given kind linked to an origin identifier
func (r *itemRepo) FindByOrigin(ctx context.Context, originName, identifier string, kind models.Kind) (*models.ResearchItem, error) {
	query := `
		SELECT ri.id, ri.research_item_type_id, ri.kind, ri.creator_research_entity_id, ri.data, ri.created_at, ri.updated_at
		FROM research_item ri
		JOIN research_item_origin_identifier rioi ON rioi.research_item_id = ri.id
		JOIN origin_identifier oi ON oi.id = rioi.origin_identifier_id
		WHERE oi.name = $1 AND oi.identifier = $2 AND ri.kind = $3
		ORDER BY ri.id
		LIMIT 1
	`
	item, err := scanItem(r.q.QueryRowContext(ctx, query, originName, identifier, kind))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

// Select resolves a bulk selection to item ids
func (r *itemRepo) Select(ctx context.Context, sel ItemSelection) ([]int64, error) {
	query, args, err := selectionSQL(sel)
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func selectionSQL(sel ItemSelection) (string, []any, error) {
	b := psql.Select("ri.id").Distinct().From("research_item ri").OrderBy("ri.id")

	switch sel.Kind {
	case "verified":
		b = b.Join("verified v ON v.research_item_id = ri.id").
			Where(sq.Eq{"v.research_entity_id": sel.ResearchEntityID})
	case "suggested":
		b = b.Join("suggested s ON s.research_item_id = ri.id").
			Where(sq.Eq{"s.research_entity_id": sel.ResearchEntityID, "s.discarded": false})
	case "draft":
		b = b.Where(sq.Eq{"ri.kind": models.KindDraft, "ri.creator_research_entity_id": sel.ResearchEntityID})
	default:
		return "", nil, fmt.Errorf("unknown selection kind %q", sel.Kind)
	}
	return b.ToSql()
}

// ListIDs returns every item id
func (r *itemRepo) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id FROM research_item ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// originRepo is the concrete implementation of OriginRepository
type originRepo struct {
	q Querier
}

// FindOrCreate returns the id of an origin identifier, inserting it if needed
func (r *originRepo) FindOrCreate(ctx context.Context, name, identifier string) (int64, error) {
	query := `
		INSERT INTO origin_identifier (name, identifier)
		VALUES ($1, $2)
		ON CONFLICT (name, identifier) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`
	var id int64
	err := r.q.QueryRowContext(ctx, query, name, identifier).Scan(&id)
	return id, err
}

// Link attaches an origin identifier to an item
func (r *originRepo) Link(ctx context.Context, itemID, originID int64) error {
	query := `
		INSERT INTO research_item_origin_identifier (research_item_id, origin_identifier_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := r.q.ExecContext(ctx, query, itemID, originID)
	return mapError(err)
}
