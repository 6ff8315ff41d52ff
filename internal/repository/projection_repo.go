package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/research-output-api/internal/models"
)

// projectionRepo is the concrete implementation of ProjectionRepository
type projectionRepo struct {
	q Querier
}

// UpsertItemFields writes the item-derived columns, leaving author columns as they are
func (r *projectionRepo) UpsertItemFields(ctx context.Context, p *models.SearchProjection) error {
	query := `
		INSERT INTO duplicate_search_optimization (
			research_item_id, research_item_type_id, doi, title_string, title_string_length,
			event_string, event_string_length, year, sub_type,
			application_number, filing_date, patent_number, issue_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (research_item_id) DO UPDATE SET
			research_item_type_id = EXCLUDED.research_item_type_id,
			doi = EXCLUDED.doi,
			title_string = EXCLUDED.title_string,
			title_string_length = EXCLUDED.title_string_length,
			event_string = EXCLUDED.event_string,
			event_string_length = EXCLUDED.event_string_length,
			year = EXCLUDED.year,
			sub_type = EXCLUDED.sub_type,
			application_number = EXCLUDED.application_number,
			filing_date = EXCLUDED.filing_date,
			patent_number = EXCLUDED.patent_number,
			issue_date = EXCLUDED.issue_date
	`
	_, err := r.q.ExecContext(ctx, query,
		p.ResearchItemID, p.ResearchItemTypeID, p.DOI, p.TitleString, p.TitleStringLength,
		p.EventString, p.EventStringLength, p.Year, p.SubType,
		p.ApplicationNumber, p.FilingDate, p.PatentNumber, p.IssueDate,
	)
	return mapError(err)
}

// UpdateAuthors writes the author columns of an existing projection row
func (r *projectionRepo) UpdateAuthors(ctx context.Context, itemID int64, authors string, length int) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE duplicate_search_optimization SET authors_string = $2, authors_string_length = $3 WHERE research_item_id = $1`,
		itemID, authors, length,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const projectionSelect = `
	SELECT dso.research_item_id, dso.research_item_type_id, oi.identifier, dso.doi,
		dso.title_string, dso.title_string_length, dso.authors_string, dso.authors_string_length,
		dso.event_string, dso.event_string_length, dso.year, dso.sub_type,
		dso.application_number, dso.filing_date, dso.patent_number, dso.issue_date
	FROM duplicate_search_optimization dso
	LEFT JOIN LATERAL (
		SELECT o.identifier
		FROM research_item_origin_identifier rioi
		JOIN origin_identifier o ON o.id = rioi.origin_identifier_id AND o.name = '` + OriginOpenAlex + `'
		WHERE rioi.research_item_id = dso.research_item_id
		ORDER BY o.id
		LIMIT 1
	) oi ON true
`

func scanProjection(row interface{ Scan(...any) error }) (*models.SearchProjection, error) {
	var p models.SearchProjection
	var originID, doi, subType, applicationNumber, filingDate, patentNumber, issueDate sql.NullString
	var year sql.NullInt64
	if err := row.Scan(
		&p.ResearchItemID, &p.ResearchItemTypeID, &originID, &doi,
		&p.TitleString, &p.TitleStringLength, &p.AuthorsString, &p.AuthorsStringLength,
		&p.EventString, &p.EventStringLength, &year, &subType,
		&applicationNumber, &filingDate, &patentNumber, &issueDate,
	); err != nil {
		return nil, err
	}
	p.OriginID = nullString(originID)
	p.DOI = nullString(doi)
	p.SubType = nullString(subType)
	p.ApplicationNumber = nullString(applicationNumber)
	p.FilingDate = nullString(filingDate)
	p.PatentNumber = nullString(patentNumber)
	p.IssueDate = nullString(issueDate)
	if year.Valid {
		y := int(year.Int64)
		p.Year = &y
	}
	return &p, nil
}

// Get returns the projection of an item, with its origin identifier
func (r *projectionRepo) Get(ctx context.Context, itemID int64) (*models.SearchProjection, error) {
	p, err := scanProjection(r.q.QueryRowContext(ctx, projectionSelect+` WHERE dso.research_item_id = $1`, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// GetMany returns the projections of the given items keyed by item id
func (r *projectionRepo) GetMany(ctx context.Context, itemIDs []int64) (map[int64]*models.SearchProjection, error) {
	out := make(map[int64]*models.SearchProjection, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	rows, err := r.q.QueryContext(ctx, projectionSelect+` WHERE dso.research_item_id = ANY($1)`, pq.Array(itemIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProjection(rows)
		if err != nil {
			return nil, err
		}
		out[p.ResearchItemID] = p
	}
	return out, rows.Err()
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
