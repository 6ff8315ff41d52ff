package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/research-output-api/internal/models"
)

// authorRepo is the concrete implementation of AuthorRepository
type authorRepo struct {
	q Querier
}

// ListByItem returns the authors of an item in position order, with their affiliations
func (r *authorRepo) ListByItem(ctx context.Context, itemID int64) ([]*models.Author, error) {
	query := `
		SELECT a.id, a.research_item_id, a.position, a.name, a.verified_id,
			a.is_corresponding_author, a.is_first_coauthor, a.is_last_coauthor, a.is_oral_presentation,
			COALESCE(array_agg(af.institute_id ORDER BY af.institute_id) FILTER (WHERE af.institute_id IS NOT NULL), '{}')
		FROM author a
		LEFT JOIN affiliation af ON af.author_id = a.id
		WHERE a.research_item_id = $1
		GROUP BY a.id
		ORDER BY a.position
	`
	rows, err := r.q.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []*models.Author
	for rows.Next() {
		var a models.Author
		var verifiedID sql.NullInt64
		var affiliations pq.Int64Array
		if err := rows.Scan(
			&a.ID, &a.ResearchItemID, &a.Position, &a.Name, &verifiedID,
			&a.IsCorrespondingAuthor, &a.IsFirstCoauthor, &a.IsLastCoauthor, &a.IsOralPresentation,
			&affiliations,
		); err != nil {
			return nil, err
		}
		if verifiedID.Valid {
			a.VerifiedID = &verifiedID.Int64
		}
		a.Affiliations = []int64(affiliations)
		authors = append(authors, &a)
	}
	return authors, rows.Err()
}

// Upsert writes an author slot keyed by (item, position). The verification link is left untouched.
func (r *authorRepo) Upsert(ctx context.Context, a *models.Author) error {
	query := `
		INSERT INTO author (research_item_id, position, name,
			is_corresponding_author, is_first_coauthor, is_last_coauthor, is_oral_presentation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (research_item_id, position) DO UPDATE SET
			name = EXCLUDED.name,
			is_corresponding_author = EXCLUDED.is_corresponding_author,
			is_first_coauthor = EXCLUDED.is_first_coauthor,
			is_last_coauthor = EXCLUDED.is_last_coauthor,
			is_oral_presentation = EXCLUDED.is_oral_presentation
		RETURNING id, verified_id
	`
	var verifiedID sql.NullInt64
	err := r.q.QueryRowContext(ctx, query,
		a.ResearchItemID, a.Position, a.Name,
		a.IsCorrespondingAuthor, a.IsFirstCoauthor, a.IsLastCoauthor, a.IsOralPresentation,
	).Scan(&a.ID, &verifiedID)
	if err != nil {
		return mapError(err)
	}
	a.VerifiedID = nil
	if verifiedID.Valid {
		a.VerifiedID = &verifiedID.Int64
	}
	return nil
}

// Update writes the flags and verification link of an author
func (r *authorRepo) Update(ctx context.Context, a *models.Author) error {
	query := `
		UPDATE author SET
			verified_id = $2,
			is_corresponding_author = $3,
			is_first_coauthor = $4,
			is_last_coauthor = $5,
			is_oral_presentation = $6
		WHERE id = $1
	`
	res, err := r.q.ExecContext(ctx, query,
		a.ID, a.VerifiedID, a.IsCorrespondingAuthor, a.IsFirstCoauthor, a.IsLastCoauthor, a.IsOralPresentation,
	)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("author %d: %w", a.ID, sql.ErrNoRows)
	}
	return nil
}

// DeleteNotInPositions drops the author slots of an item that are not listed
func (r *authorRepo) DeleteNotInPositions(ctx context.Context, itemID int64, positions []int) (int64, error) {
	keep := make([]int64, len(positions))
	for i, p := range positions {
		keep[i] = int64(p)
	}
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM author WHERE research_item_id = $1 AND NOT (position = ANY($2))`,
		itemID, pq.Array(keep),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetAffiliations makes the author's affiliations exactly instituteIDs
func (r *authorRepo) SetAffiliations(ctx context.Context, authorID int64, instituteIDs []int64) error {
	if instituteIDs == nil {
		instituteIDs = []int64{} // a nil array would compare as NULL and keep everything
	}
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM affiliation WHERE author_id = $1 AND NOT (institute_id = ANY($2))`,
		authorID, pq.Array(instituteIDs),
	)
	if err != nil {
		return err
	}
	return r.AddAffiliations(ctx, authorID, instituteIDs)
}

// AddAffiliations links the author to each institute that is not linked yet
func (r *authorRepo) AddAffiliations(ctx context.Context, authorID int64, instituteIDs []int64) error {
	if len(instituteIDs) == 0 {
		return nil
	}
	query := `
		INSERT INTO affiliation (author_id, institute_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING
	`
	_, err := r.q.ExecContext(ctx, query, authorID, pq.Array(instituteIDs))
	return mapError(err)
}
